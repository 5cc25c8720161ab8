// Package form holds the state of a contact form between user edits and a
// delivery attempt: values, inline field errors, the field to scroll to, the
// result banner and whether the submit control is disabled.
package form

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/jmehdipour/contact-relay/internal/logger"
	"github.com/jmehdipour/contact-relay/internal/metrics"
	"github.com/jmehdipour/contact-relay/internal/model"
	"github.com/jmehdipour/contact-relay/internal/validate"
	"go.uber.org/zap"
)

const SuccessText = "Thank you! We've received your request and will contact you soon."

var ErrSubmitting = errors.New("form: submission already in progress")

// Sender delivers a validated submission. *dispatcher.Dispatcher implements it.
type Sender interface {
	Send(ctx context.Context, sub model.Submission) bool
}

type BannerKind int

const (
	BannerNone BannerKind = iota
	BannerSuccess
	BannerError
)

func (k BannerKind) String() string {
	switch k {
	case BannerSuccess:
		return "success"
	case BannerError:
		return "error"
	default:
		return "none"
	}
}

type Banner struct {
	Kind BannerKind
	Text string
}

var fields = []string{
	validate.FieldName,
	validate.FieldPhone,
	validate.FieldEmail,
	validate.FieldAddress,
	validate.FieldMessage,
}

type Form struct {
	mu         sync.Mutex
	rules      validate.Rules
	phones     []string
	values     map[string]string
	errs       map[string]string
	focus      string
	banner     Banner
	submitting bool
}

// New returns an empty form. phones are offered in the error banner as a
// fallback when delivery fails.
func New(rules validate.Rules, phones []string) *Form {
	return &Form{
		rules:  rules,
		phones: phones,
		values: make(map[string]string, len(fields)),
		errs:   make(map[string]string, len(fields)),
	}
}

// NewGeneric builds a form from arbitrarily named inputs (see FromValues);
// email is optional on such forms.
func NewGeneric(values map[string]string, phones []string) *Form {
	sub := FromValues(values)

	f := New(validate.Generic, phones)
	f.values[validate.FieldName] = sub.Name
	f.values[validate.FieldPhone] = sub.Phone
	f.values[validate.FieldEmail] = sub.Email
	f.values[validate.FieldAddress] = sub.Address
	f.values[validate.FieldMessage] = sub.Message
	return f
}

// Edit stores a new value and clears the field's error.
func (f *Form) Edit(field, value string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.values[field] = value
	delete(f.errs, field)
	if f.focus == field {
		f.focus = ""
	}
}

// Blur runs the single-field check and records its message, if any.
func (f *Form) Blur(field string) string {
	f.mu.Lock()
	defer f.mu.Unlock()

	delete(f.errs, field)
	msg := validate.Field(field, f.values[field])
	if msg != "" {
		f.errs[field] = msg
	}
	return msg
}

func (f *Form) Value(field string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.values[field]
}

func (f *Form) Error(field string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.errs[field]
}

// Focus is the first invalid field of the last rejected submit.
func (f *Form) Focus() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.focus
}

func (f *Form) Banner() Banner {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.banner
}

// Submitting reports whether the submit control is disabled.
func (f *Form) Submitting() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.submitting
}

// Submit validates the form and, when valid, hands it to s. Validation
// failures are returned as validate.Errors and nothing is sent. A delivery
// failure is not an error: it is reported through the banner and the result.
func (f *Form) Submit(ctx context.Context, s Sender) (bool, error) {
	f.mu.Lock()
	if f.submitting {
		f.mu.Unlock()
		return false, ErrSubmitting
	}

	clear(f.errs)
	f.focus = ""
	sub := f.submissionLocked()

	if errs := validate.Submission(sub, f.rules); len(errs) > 0 {
		for _, fe := range errs {
			f.errs[fe.Field] = fe.Message
		}
		f.focus = errs.First()
		f.mu.Unlock()
		metrics.SubmissionsTotal.WithLabelValues("validate", "invalid").Inc()
		return false, errs
	}

	f.submitting = true
	f.mu.Unlock()
	metrics.SubmissionsTotal.WithLabelValues("validate", "ok").Inc()

	defer func() {
		f.mu.Lock()
		f.submitting = false
		f.mu.Unlock()
	}()

	ok := s.Send(ctx, sub)

	f.mu.Lock()
	defer f.mu.Unlock()
	if ok {
		f.banner = Banner{Kind: BannerSuccess, Text: SuccessText}
		clear(f.values)
		return true, nil
	}

	logger.Log.Error("telegram sending failed", zap.Strings("fallback_phones", f.phones))
	f.banner = Banner{Kind: BannerError, Text: failureText(f.phones)}
	return false, nil
}

// Submission returns the trimmed current values.
func (f *Form) Submission() model.Submission {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.submissionLocked()
}

func (f *Form) submissionLocked() model.Submission {
	return model.Submission{
		Name:    f.values[validate.FieldName],
		Phone:   f.values[validate.FieldPhone],
		Email:   f.values[validate.FieldEmail],
		Address: f.values[validate.FieldAddress],
		Message: f.values[validate.FieldMessage],
	}.Trimmed()
}

func failureText(phones []string) string {
	const prefix = "Unable to send message automatically."
	switch len(phones) {
	case 0:
		return prefix + " Please try again later."
	case 1:
		return prefix + " Please call us directly at " + phones[0] + "."
	default:
		return prefix + " Please call us directly at " +
			strings.Join(phones[:len(phones)-1], ", ") + " or " + phones[len(phones)-1] + "."
	}
}

var aliases = map[string][]string{
	validate.FieldName:    {"name", "fullname", "full-name"},
	validate.FieldPhone:   {"phone", "tel", "telephone"},
	validate.FieldEmail:   {"email", "mail"},
	validate.FieldMessage: {"message", "comment", "comments", "notes"},
	validate.FieldAddress: {"address", "location"},
}

// FromValues maps the inputs of an arbitrary form onto a Submission using
// common field names. The first non-empty alias wins.
func FromValues(values map[string]string) model.Submission {
	pick := func(field string) string {
		for _, k := range aliases[field] {
			if v := strings.TrimSpace(values[k]); v != "" {
				return v
			}
		}
		return ""
	}

	return model.Submission{
		Name:    pick(validate.FieldName),
		Phone:   pick(validate.FieldPhone),
		Email:   pick(validate.FieldEmail),
		Address: pick(validate.FieldAddress),
		Message: pick(validate.FieldMessage),
	}
}
