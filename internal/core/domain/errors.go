package domain

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"
)

// ErrorKind classifies a fetch failure.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindOffline
	KindNetwork
	KindTimeout
	KindRateLimited
	KindInvalidRequest
	KindNotFound
	KindUpstreamError
)

// String returns the kind as a log-friendly label.
func (k ErrorKind) String() string {
	switch k {
	case KindOffline:
		return "offline"
	case KindNetwork:
		return "network"
	case KindTimeout:
		return "timeout"
	case KindRateLimited:
		return "rate_limited"
	case KindInvalidRequest:
		return "invalid_request"
	case KindNotFound:
		return "not_found"
	case KindUpstreamError:
		return "upstream_error"
	default:
		return "unknown"
	}
}

// PlacesError is a structured failure produced by the HTTP layer. The
// transport sets Kind directly when it knows the failure mode (timeout vs
// network), and records the HTTP status or the upstream API status so
// classification never has to parse message text for errors we created
// ourselves.
type PlacesError struct {
	Kind       ErrorKind
	HTTPStatus int
	APIStatus  string
	Message    string
	Err        error
}

func (e *PlacesError) Error() string {
	switch {
	case e.APIStatus != "":
		if e.Message != "" {
			return fmt.Sprintf("places api error %s: %s", e.APIStatus, e.Message)
		}
		return fmt.Sprintf("places api error %s", e.APIStatus)
	case e.HTTPStatus != 0:
		return fmt.Sprintf("places http %d: %s", e.HTTPStatus, e.Message)
	case e.Err != nil:
		return fmt.Sprintf("places: %s: %v", e.Message, e.Err)
	default:
		return "places: " + e.Message
	}
}

func (e *PlacesError) Unwrap() error { return e.Err }

// ErrorDescriptor is the classification result handed to the retry engine
// and, through the user message, to the widget.
type ErrorDescriptor struct {
	Kind        ErrorKind
	Message     string
	UserMessage string
	Retryable   bool
	RetryAfter  time.Duration
}

// User-facing messages are French per product requirement. Kept as a
// dataset so a locale change does not touch classification logic.
var userMessages = map[ErrorKind]string{
	KindOffline:        "Vous êtes hors ligne. Vérifiez votre connexion internet.",
	KindNetwork:        "Problème de connexion réseau. Veuillez réessayer.",
	KindTimeout:        "Le serveur met trop de temps à répondre. Veuillez réessayer.",
	KindRateLimited:    "Trop de requêtes en cours. Veuillez patienter un instant.",
	KindInvalidRequest: "Requête invalide. Contactez le support si le problème persiste.",
	KindNotFound:       "Établissement introuvable.",
	KindUpstreamError:  "Le service d'avis est temporairement indisponible.",
	KindUnknown:        "Une erreur inattendue s'est produite.",
}

// UserMessage returns the localized message for a kind.
func UserMessage(kind ErrorKind) string {
	if msg, ok := userMessages[kind]; ok {
		return msg
	}
	return userMessages[KindUnknown]
}

// Classify maps a failure and the live online flag to an ErrorDescriptor.
// Priority order: the offline flag wins over everything, then structured
// PlacesError fields, then stdlib timeout detection, then a substring
// fallback for wrapped transport errors that did not originate in our HTTP
// layer.
func Classify(err error, online bool) ErrorDescriptor {
	if !online {
		return describe(KindOffline, err, true, 5*time.Second)
	}
	if err == nil {
		return describe(KindUnknown, nil, false, 0)
	}

	var pe *PlacesError
	if errors.As(err, &pe) {
		return classifyStructured(pe)
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return describe(KindTimeout, err, true, 3*time.Second)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return describe(KindTimeout, err, true, 3*time.Second)
	}

	return classifyText(err)
}

func classifyStructured(pe *PlacesError) ErrorDescriptor {
	// Transport-set kinds take precedence.
	switch pe.Kind {
	case KindNetwork:
		return describe(KindNetwork, pe, true, 2*time.Second)
	case KindTimeout:
		return describe(KindTimeout, pe, true, 3*time.Second)
	case KindOffline:
		return describe(KindOffline, pe, true, 5*time.Second)
	}

	switch pe.HTTPStatus {
	case 429:
		return describe(KindRateLimited, pe, true, 5*time.Second)
	case 400:
		return describe(KindInvalidRequest, pe, false, 0)
	case 404:
		return describe(KindNotFound, pe, false, 0)
	case 500, 502, 503:
		return describe(KindUpstreamError, pe, true, 10*time.Second)
	}

	switch pe.APIStatus {
	case "", "OK":
		// Structured error with nothing actionable recorded.
	case "OVER_QUERY_LIMIT":
		return describe(KindRateLimited, pe, true, 60*time.Second)
	case "REQUEST_DENIED":
		return describe(KindUpstreamError, pe, false, 0)
	case "ZERO_RESULTS", "NOT_FOUND":
		return describe(KindNotFound, pe, false, 0)
	case "INVALID_REQUEST":
		return describe(KindInvalidRequest, pe, false, 0)
	default:
		return describe(KindUpstreamError, pe, true, 30*time.Second)
	}

	if pe.Kind != KindUnknown {
		return describe(pe.Kind, pe, false, 0)
	}
	return describe(KindUnknown, pe, false, 0)
}

// classifyText is the legacy substring fallback, kept for errors raised
// outside our own HTTP layer.
func classifyText(err error) ErrorDescriptor {
	s := err.Error()
	sLower := strings.ToLower(s)

	switch {
	case strings.Contains(sLower, "failed to fetch"),
		strings.Contains(sLower, "fetch"),
		strings.Contains(sLower, "network"),
		strings.Contains(sLower, "connection refused"),
		strings.Contains(sLower, "connection reset"),
		strings.Contains(sLower, "no such host"):
		return describe(KindNetwork, err, true, 2*time.Second)

	case strings.Contains(sLower, "timeout"), strings.Contains(sLower, "aborted"),
		strings.Contains(sLower, "deadline exceeded"):
		return describe(KindTimeout, err, true, 3*time.Second)

	case strings.Contains(s, "429"), strings.Contains(sLower, "too many requests"):
		return describe(KindRateLimited, err, true, 5*time.Second)

	case strings.Contains(s, "400"):
		return describe(KindInvalidRequest, err, false, 0)

	case strings.Contains(s, "404"):
		return describe(KindNotFound, err, false, 0)

	case strings.Contains(s, "500"), strings.Contains(s, "502"), strings.Contains(s, "503"):
		return describe(KindUpstreamError, err, true, 10*time.Second)

	case strings.Contains(s, "OVER_QUERY_LIMIT"):
		return describe(KindRateLimited, err, true, 60*time.Second)

	case strings.Contains(s, "REQUEST_DENIED"):
		return describe(KindUpstreamError, err, false, 0)

	case strings.Contains(s, "ZERO_RESULTS"):
		return describe(KindNotFound, err, false, 0)

	case strings.Contains(sLower, "api error"):
		return describe(KindUpstreamError, err, true, 30*time.Second)
	}

	return describe(KindUnknown, err, false, 0)
}

func describe(kind ErrorKind, err error, retryable bool, retryAfter time.Duration) ErrorDescriptor {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	return ErrorDescriptor{
		Kind:        kind,
		Message:     msg,
		UserMessage: UserMessage(kind),
		Retryable:   retryable,
		RetryAfter:  retryAfter,
	}
}
