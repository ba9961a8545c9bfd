package enums

type AccountStatus string

const (
	AccountStatusActive      AccountStatus = "active"
	AccountStatusSoftDeleted AccountStatus = "soft_deleted"
	AccountStatusBanned      AccountStatus = "banned"
)

type DeletedBy string

const (
	DeletedBySelf  DeletedBy = "self"
	DeletedByAdmin DeletedBy = "admin"
)
