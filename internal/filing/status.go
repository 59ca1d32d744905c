// Package filing defines the shared lifecycle of ITR and GST filing records:
// the closed status enumeration, the transition graph, and the actor rules for
// who may move a filing between states.
package filing

import "errors"

type Status string

const (
	StatusDraft            Status = "DRAFT"
	StatusDocumentsPending Status = "DOCUMENTS_PENDING"
	StatusUnderReview      Status = "UNDER_REVIEW"
	StatusCAAssigned       Status = "CA_ASSIGNED"
	StatusProcessing       Status = "PROCESSING"
	StatusFiled            Status = "FILED"
	StatusAcknowledged     Status = "ACKNOWLEDGED"
	StatusCompleted        Status = "COMPLETED"
	StatusRejected         Status = "REJECTED"
	StatusRefundInitiated  Status = "REFUND_INITIATED"
)

type Kind string

const (
	KindITR Kind = "ITR"
	KindGST Kind = "GST"
)

var (
	ErrUnknownStatus     = errors.New("unknown filing status")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrForbidden         = errors.New("actor may not perform this transition")
	ErrReasonRequired    = errors.New("rejection reason required")
	ErrAckRequired       = errors.New("acknowledgment number required")
	ErrRefundNotDue      = errors.New("refund not applicable")
)

var forward = map[Status]Status{
	StatusDraft:            StatusDocumentsPending,
	StatusDocumentsPending: StatusUnderReview,
	StatusUnderReview:      StatusCAAssigned,
	StatusCAAssigned:       StatusProcessing,
	StatusProcessing:       StatusFiled,
	StatusFiled:            StatusAcknowledged,
	StatusAcknowledged:     StatusCompleted,
}

func ParseStatus(raw string) (Status, error) {
	switch Status(raw) {
	case StatusDraft, StatusDocumentsPending, StatusUnderReview, StatusCAAssigned,
		StatusProcessing, StatusFiled, StatusAcknowledged, StatusCompleted,
		StatusRejected, StatusRefundInitiated:
		return Status(raw), nil
	}
	return "", ErrUnknownStatus
}

// Terminal reports whether no transition leaves the status. COMPLETED is not
// terminal for ITR filings because REFUND_INITIATED may follow it.
func Terminal(kind Kind, s Status) bool {
	switch s {
	case StatusRejected, StatusRefundInitiated:
		return true
	case StatusCompleted:
		return kind != KindITR
	}
	return false
}

// AllowedNext returns the set of statuses reachable from the current one.
func AllowedNext(kind Kind, current Status) []Status {
	if Terminal(kind, current) {
		return nil
	}
	var next []Status
	if to, ok := forward[current]; ok {
		next = append(next, to)
	}
	if current == StatusCompleted && kind == KindITR {
		next = append(next, StatusRefundInitiated)
	}
	next = append(next, StatusRejected)
	return next
}

func canTransition(kind Kind, from, to Status) bool {
	for _, allowed := range AllowedNext(kind, from) {
		if allowed == to {
			return true
		}
	}
	return false
}

// Editable reports whether the owning user may still write the filing's core
// form fields. Past DOCUMENTS_PENDING only remarks stay writable.
func Editable(s Status) bool {
	return s == StatusDraft || s == StatusDocumentsPending
}

// Deletable reports whether the owning user may delete the filing.
func Deletable(s Status) bool {
	return s == StatusDraft
}

type Actor struct {
	Role    string // "user" or "staff"
	IsOwner bool
}

// TransitionInput carries the side-effect payload a transition may require.
type TransitionInput struct {
	Reason       string // REJECTED: mandatory non-empty reason
	AckNumber    string // FILED: set exactly once with filed_at
	RefundAmount int64  // REFUND_INITIATED: must be > 0
}

// CheckTransition validates a requested transition against the graph, the
// actor rules and the per-target payload requirements. It performs no
// mutation; callers apply the change with a conditional update keyed on the
// expected current status.
func CheckTransition(kind Kind, actor Actor, from, to Status, in TransitionInput) error {
	if _, err := ParseStatus(string(from)); err != nil {
		return err
	}
	if _, err := ParseStatus(string(to)); err != nil {
		return err
	}
	if !canTransition(kind, from, to) {
		return ErrInvalidTransition
	}

	// The owner's only transition is submitting a draft for review. Everything
	// past that point is staff-triggered.
	if actor.Role != "staff" {
		if !actor.IsOwner || from != StatusDraft || to != StatusDocumentsPending {
			return ErrForbidden
		}
	}

	switch to {
	case StatusRejected:
		if in.Reason == "" {
			return ErrReasonRequired
		}
	case StatusFiled:
		if in.AckNumber == "" {
			return ErrAckRequired
		}
	case StatusRefundInitiated:
		if kind != KindITR || in.RefundAmount <= 0 {
			return ErrRefundNotDue
		}
	}
	return nil
}
