package audit

// ActorKind identifies who performed the action that produced an event.
type ActorKind string

const (
	ActorUser   ActorKind = "USER"
	ActorSigner ActorKind = "SIGNER"
	ActorSystem ActorKind = "SYSTEM"
)

// EntityType identifies what the event's entityId points at — and, per
// spec §4.1, which chain the event belongs to.
type EntityType string

const (
	EntityDocument EntityType = "DOCUMENT"
	EntitySigner   EntityType = "SIGNER"
	EntityToken    EntityType = "TOKEN"
	EntityOTP      EntityType = "OTP"
	EntityStorage  EntityType = "STORAGE"
	EntitySystem   EntityType = "SYSTEM"
	EntityUser     EntityType = "USER"
	EntityTenant   EntityType = "TENANT"
	EntityFolder   EntityType = "FOLDER"
)

// Action is the enumerated audit action (spec §4.1).
type Action string

const (
	ActionStorageUploaded   Action = "STORAGE_UPLOADED"
	ActionViewed            Action = "VIEWED"
	ActionOTPSent           Action = "OTP_SENT"
	ActionOTPVerified       Action = "OTP_VERIFIED"
	ActionOTPFailed         Action = "OTP_FAILED"
	ActionSigned            Action = "SIGNED"
	ActionStatusChanged     Action = "STATUS_CHANGED"
	ActionCertificateIssued Action = "CERTIFICATE_ISSUED"
	ActionUserCreated       Action = "USER_CREATED"
	ActionLoginSuccess      Action = "LOGIN_SUCCESS"
	ActionCreated           Action = "CREATED"
	ActionRenamed           Action = "RENAMED"
	ActionMoved             Action = "MOVED"
	ActionDeleted           Action = "DELETED"
)
