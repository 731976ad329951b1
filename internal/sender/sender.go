// Package sender posts contact submissions to an external form endpoint.
package sender

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"

	"github.com/conneroisu/contactform/internal/contact"
	apperrors "github.com/conneroisu/contactform/internal/errors"
	"github.com/conneroisu/contactform/internal/logging"
)

// TokenField is the form key carrying the challenge token, matching what
// reCAPTCHA-aware form backends expect.
const TokenField = "g-recaptcha-response"

// maxResponseBody bounds how much of the endpoint's reply is read.
const maxResponseBody = 64 << 10

// Options configures a FormSender.
type Options struct {
	Endpoint       string
	Timeout        time.Duration
	SuccessMessage string
	FailureMessage string
	Client         *http.Client
	Logger         logging.Logger
}

// FormSender implements contact.Sender over HTTP.
type FormSender struct {
	endpoint       string
	successMessage string
	failureMessage string
	client         *http.Client
	logger         logging.Logger
}

var _ contact.Sender = (*FormSender)(nil)

// New creates a FormSender.
func New(opts Options) (*FormSender, error) {
	if _, err := url.Parse(opts.Endpoint); err != nil || opts.Endpoint == "" {
		return nil, apperrors.NewConfigError(apperrors.ErrCodeConfigInvalid, "sender endpoint is required", err)
	}
	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: opts.Timeout}
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	return &FormSender{
		endpoint:       opts.Endpoint,
		successMessage: opts.SuccessMessage,
		failureMessage: opts.FailureMessage,
		client:         client,
		logger:         logger.WithComponent("sender"),
	}, nil
}

// reply is the optional JSON body of the endpoint's response.
type reply struct {
	Result  string `json:"result"`
	Message string `json:"message"`
	Error   string `json:"error"`
}

// Send posts sub as an urlencoded form. A 2xx reply resolves with the
// endpoint's message, or the configured success message when it has none.
// Anything else fails with a SubmissionError.
func (s *FormSender) Send(ctx context.Context, sub contact.Submission) (string, error) {
	form := url.Values{}
	form.Set("name", norm.NFC.String(sub.Name))
	form.Set("email", norm.NFC.String(sub.Email))
	form.Set("message", norm.NFC.String(sub.Message))
	form.Set(TokenField, sub.Token)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", s.fail("", apperrors.NewInternalError(apperrors.ErrCodeSendFailed, "build request", err))
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", s.fail("", apperrors.NewNetworkError(apperrors.ErrCodeSendFailed, "post to form endpoint", err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return "", s.fail("", apperrors.NewNetworkError(apperrors.ErrCodeSendFailed, "read form endpoint reply", err))
	}

	var r reply
	if isJSON(resp.Header.Get("Content-Type")) {
		// a malformed body is treated like an empty one
		_ = json.Unmarshal(body, &r)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 || strings.EqualFold(r.Result, "error") {
		cause := apperrors.NewNetworkError(apperrors.ErrCodeSendFailed,
			fmt.Sprintf("form endpoint replied %d", resp.StatusCode), nil)
		return "", s.fail(firstNonEmpty(r.Error, r.Message), cause)
	}

	s.logger.Debug(ctx, "form endpoint accepted submission", "status", resp.StatusCode)
	return firstNonEmpty(r.Message, s.successMessage), nil
}

func (s *FormSender) fail(message string, cause error) error {
	return apperrors.NewSubmissionError(firstNonEmpty(message, s.failureMessage), cause)
}

func isJSON(contentType string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(contentType)), "application/json")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
