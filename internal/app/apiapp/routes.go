package apiapp

import (
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	accountssvc "github.com/ivankudzin/kinship/internal/services/accounts"
	assistantsvc "github.com/ivankudzin/kinship/internal/services/assistant"
	authsvc "github.com/ivankudzin/kinship/internal/services/auth"
	contentsvc "github.com/ivankudzin/kinship/internal/services/content"
	gatesvc "github.com/ivankudzin/kinship/internal/services/gate"
	lifecyclesvc "github.com/ivankudzin/kinship/internal/services/lifecycle"
	mediasvc "github.com/ivankudzin/kinship/internal/services/media"
	walletsvc "github.com/ivankudzin/kinship/internal/services/wallet"
	"github.com/ivankudzin/kinship/internal/transport/http/handlers"
)

type Dependencies struct {
	AuthService      *authsvc.Service
	AccountService   *accountssvc.Service
	MediaService     *mediasvc.Service
	LifecycleService *lifecyclesvc.Service
	GateService      *gatesvc.Service
	ContentService   *contentsvc.Service
	WalletService    *walletsvc.Service
	AssistantService *assistantsvc.Service
	HealthChecks     map[string]handlers.Pinger
	WebhookSecret    string
	Logger           *zap.Logger
}

func RegisterRoutes(r chi.Router, deps Dependencies) {
	healthHandler := handlers.NewHealthHandler(deps.HealthChecks)
	authHandler := handlers.NewAuthHandler(deps.AuthService)
	meHandler := handlers.NewMeHandler(deps.AccountService, deps.MediaService)
	lifecycleHandler := handlers.NewLifecycleHandler(deps.LifecycleService)
	gateHandler := handlers.NewGateHandler(deps.GateService)
	contentHandler := handlers.NewContentHandler(deps.ContentService)
	walletHandler := handlers.NewWalletHandler(deps.WalletService, deps.WebhookSecret)
	assistantHandler := handlers.NewAssistantHandler(deps.AssistantService)

	var validator TokenValidator
	if deps.AuthService != nil {
		validator = deps.AuthService
	}
	authMW := AuthMiddleware(validator, deps.Logger)
	moderatorMW := RequireRole("MODERATOR", "ADMIN")

	r.Get("/healthz", healthHandler.Get)

	r.Route("/v1/auth", func(r chi.Router) {
		r.Post("/signup", authHandler.Signup)
		r.Post("/login", authHandler.Login)
		r.Post("/telegram", authHandler.LoginTelegram)
		r.Post("/refresh", authHandler.Refresh)
		r.With(authMW).Post("/logout", authHandler.Logout)
		r.With(authMW).Post("/logout-all", authHandler.LogoutAll)
	})

	// Provider callbacks carry no bearer token.
	r.Post("/v1/purchases/webhook", walletHandler.Webhook)

	r.Route("/v1", func(r chi.Router) {
		r.Use(authMW)

		r.Get("/me", meHandler.Get)
		r.Patch("/me", meHandler.Update)
		r.Post("/me/avatar", meHandler.Avatar)

		r.Get("/account/lifecycle", lifecycleHandler.Status)
		r.Post("/account/delete", lifecycleHandler.Delete)
		r.Post("/account/restore", lifecycleHandler.Restore)
		r.Post("/account/decline-recovery", lifecycleHandler.DeclineRecovery)

		r.Post("/connections", gateHandler.RequestConnection)
		r.Get("/connections", gateHandler.ListConnections)
		r.Post("/connections/{id}/accept", gateHandler.Accept)
		r.Post("/connections/{id}/reject", gateHandler.Reject)
		r.Post("/connections/{id}/disconnect", gateHandler.Disconnect)
		r.Get("/connections/{id}/messages", gateHandler.ListMessages)
		r.Post("/connections/{id}/messages", gateHandler.SendMessage)
		r.Get("/connections/{id}/thread", gateHandler.Thread)
		r.Post("/connections/{id}/contact-card", gateHandler.ShareContact)
		r.Post("/blocks", gateHandler.Block)
		r.Post("/slots/unlock", gateHandler.UnlockSlot)
		r.Post("/vouches", gateHandler.Vouch)
		r.Get("/gate/preview", gateHandler.Preview)

		r.Post("/posts", contentHandler.CreatePost)
		r.Get("/posts", contentHandler.ListPosts)
		r.Post("/posts/{id}/comments", gateHandler.Comment)
		r.Get("/posts/{id}/comments", contentHandler.ListComments)
		r.Get("/notifications", contentHandler.ListNotifications)
		r.Post("/notifications/{id}/read", contentHandler.MarkRead)

		r.Get("/wallet", walletHandler.Summary)
		r.Post("/purchases", walletHandler.BeginPurchase)

		r.Post("/assistant/suggest", assistantHandler.Suggest)
	})

	r.Route("/admin", func(r chi.Router) {
		r.Use(authMW, moderatorMW)
		r.Post("/accounts/{id}/ban", lifecycleHandler.AdminBan)
		r.Post("/accounts/{id}/delete", lifecycleHandler.AdminDelete)
	})
}
