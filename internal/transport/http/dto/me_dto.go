package dto

type MeUpdateRequest struct {
	DisplayName    *string `json:"display_name"`
	Intent         *string `json:"intent"`
	Bio            *string `json:"bio"`
	TelegramChatID *int64  `json:"telegram_chat_id"`
}

type AvatarResponse struct {
	Key string `json:"key"`
	URL string `json:"url"`
}
