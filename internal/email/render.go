package email

import (
	"bytes"
	"fmt"
	"html/template"

	"topicpush/internal/model"
)

// Reference message literals.
const (
	DefaultSubject        = "MTB Topic of the Day"
	DefaultBrandImageURL  = "https://mtbtopics-assets.s3.us-west-2.amazonaws.com/mtb-header-logo-300x50.jpg"
	DefaultUnsubscribeURL = "https://www.articles.mtbtopics.com"
)

// MessageConfig holds the fixed parts of every notification.
type MessageConfig struct {
	Subject        string
	BrandImageURL  string
	UnsubscribeURL string
}

// DefaultMessage returns the reference message settings.
func DefaultMessage() MessageConfig {
	return MessageConfig{
		Subject:        DefaultSubject,
		BrandImageURL:  DefaultBrandImageURL,
		UnsubscribeURL: DefaultUnsubscribeURL,
	}
}

var bodyTmpl = template.Must(template.New("body").Parse(`<html><head></head><body>` +
	`<h1>{{.Subject}}!</h1>` +
	`<p><b><i>{{.UserID}}</i></b> : Here is your daily topic based on your preferences:<br><br>` +
	`<a href="{{.URL}}">{{.URL}}</a><br><br>` +
	`<img src="{{.BrandImageURL}}" alt="{{.Subject}}">` +
	`<br><br>Enjoy!</p>` +
	`<p><small>You can unsubscribe at any time <a href="{{.UnsubscribeURL}}">here</a></small></p>` +
	`</body></html>`))

// Render builds the subject and HTML body announcing item to user.
func Render(msg MessageConfig, user model.User, item model.Item) (string, string, error) {
	var buf bytes.Buffer
	err := bodyTmpl.Execute(&buf, struct {
		MessageConfig
		UserID string
		URL    string
	}{msg, user.ID, item.URL})
	if err != nil {
		return "", "", fmt.Errorf("render body: %w", err)
	}
	return msg.Subject, buf.String(), nil
}
