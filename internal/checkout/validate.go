package checkout

import (
	"net/mail"
	"strings"

	"github.com/example/rental-checkout/internal/apperr"
	"github.com/example/rental-checkout/internal/models"
)

const (
	MsgNameRequired   = "Please enter your full name"
	MsgEmailInvalid   = "Please enter a valid email address"
	MsgPhoneInvalid   = "Please enter a valid phone number (10 to 15 digits)"
	MsgSecondaryPhone = "Please enter a valid secondary phone number (10 to 15 digits)"

	MsgRecipientName  = "Please enter the recipient's full name"
	MsgRecipientEmail = "Please enter a valid email address for the recipient"
	MsgRecipientPhone = "Please enter a valid phone number for the recipient (10 to 15 digits)"

	MsgGatewayRequired = "Please choose a payment method"
)

type contactMessages struct {
	name, email, phone string
}

var (
	payerMessages     = contactMessages{MsgNameRequired, MsgEmailInvalid, MsgPhoneInvalid}
	recipientMessages = contactMessages{MsgRecipientName, MsgRecipientEmail, MsgRecipientPhone}
)

// ValidateContact checks the payer and, when riding for others, the
// recipient. Every failing field is reported, each under its own prefix.
func ValidateContact(rideFor models.RideFor, contact, recipient models.ContactInfo) error {
	errs := validateOne("contact", contact, payerMessages)
	if contact.SecondaryPhoneNumber != "" && !ValidPhone(contact.SecondaryPhoneNumber) {
		errs = append(errs, apperr.ValidationError{Field: "contact.secondaryPhoneNumber", Msg: MsgSecondaryPhone})
	}
	if rideFor == models.RideForOthers {
		errs = append(errs, validateOne("recipient", recipient, recipientMessages)...)
	}
	return errs.OrNil()
}

func validateOne(prefix string, c models.ContactInfo, msgs contactMessages) apperr.ValidationErrors {
	var errs apperr.ValidationErrors
	if strings.TrimSpace(c.FullName) == "" {
		errs = append(errs, apperr.ValidationError{Field: prefix + ".fullName", Msg: msgs.name})
	}
	if !ValidEmail(c.Email) {
		errs = append(errs, apperr.ValidationError{Field: prefix + ".email", Msg: msgs.email})
	}
	if !ValidPhone(c.PhoneNumber) {
		errs = append(errs, apperr.ValidationError{Field: prefix + ".phoneNumber", Msg: msgs.phone})
	}
	return errs
}

// ValidEmail accepts a bare local@domain address with a dotted domain.
func ValidEmail(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return false
	}
	addr, err := mail.ParseAddress(s)
	if err != nil || addr.Address != s || addr.Name != "" {
		return false
	}
	at := strings.LastIndexByte(s, '@')
	domain := s[at+1:]
	return at > 0 && strings.Contains(domain, ".") && !strings.HasPrefix(domain, ".") && !strings.HasSuffix(domain, ".")
}

// ValidPhone accepts 10 to 15 digits once spaces, dashes, dots, brackets
// and a leading plus are removed.
func ValidPhone(s string) bool {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "+")
	digits := 0
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			digits++
		case r == ' ' || r == '-' || r == '.' || r == '(' || r == ')':
		default:
			return false
		}
	}
	return digits >= 10 && digits <= 15
}
