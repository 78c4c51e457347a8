package notification

// NotificationSystem represents a delivery channel (email, sms).
type NotificationSystem string

// NoticeType represents a kind of notice (e.g. a sign-in code).
type NoticeType string

const (
	EmailSystem NotificationSystem = "email"
	SMSSystem   NotificationSystem = "sms"

	TwofaCodeNoticeEmail NoticeType = "twofa_code_notice_email"
	TwofaCodeNoticeSms   NoticeType = "twofa_code_notice_sms"
)

type NotificationData struct {
	To      string            // Recipient identifier (email address or phone number)
	Subject string            // Optional: overrides the template subject
	Body    string            // Optional: pre-rendered content
	Data    map[string]string // Template values
}

// NoticeTemplate holds the subject and bodies rendered for a notice
type NoticeTemplate struct {
	Subject string
	Text    string
	Html    string
}

type Notifier interface {
	Send(noticeType NoticeType, notification NotificationData, template NoticeTemplate) error
}
