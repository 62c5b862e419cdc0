package quotations

import (
	"fmt"
	"time"

	"github.com/quotedesk/quotedesk/internal/shared"
)

// AuthorizeTransition checks that actor may fire trigger on q. The owning
// salesperson may always mark their quotation effective.
func AuthorizeTransition(q *Quotation, trigger Trigger, actor shared.Actor) error {
	if actor.Can(triggerPermission(trigger)) {
		return nil
	}
	if trigger == TriggerEffective && q.SalespersonID == actor.ID {
		return nil
	}
	return fmt.Errorf("%w: role %s may not %s quotations", shared.ErrAuthorization, actor.Role, trigger)
}

// Transition applies trigger to a copy of q. The second return value is false
// when the trigger is a no-op for the current state, in which case the
// returned quotation equals q.
func Transition(q Quotation, trigger Trigger, actor shared.Actor, comment *string, now time.Time) (Quotation, bool) {
	next, ok := nextState(q.State, trigger)
	if !ok {
		return q, false
	}
	switch next {
	case StatePending, StateEffective:
		stampApproval(&q, actor, now)
	case StateRejected:
		stampRejection(&q, actor, now)
		if comment != nil && *comment != "" {
			c := *comment
			q.Comment = &c
		}
	}
	q.State = next
	q.UpdatedAt = now
	return q, true
}

func triggerPermission(trigger Trigger) string {
	switch trigger {
	case TriggerApprove:
		return shared.PermQuotationApprove
	case TriggerEffective:
		return shared.PermQuotationEffective
	default:
		return shared.PermQuotationReject
	}
}

func nextState(current State, trigger Trigger) (State, bool) {
	switch trigger {
	case TriggerApprove:
		if current == StatePendingApproval {
			return StatePending, true
		}
	case TriggerReject:
		if current == StatePendingApproval || current == StatePending {
			return StateRejected, true
		}
	case TriggerEffective:
		if current == StatePending {
			return StateEffective, true
		}
	case TriggerForceReject:
		if current != StateRejected {
			return StateRejected, true
		}
	}
	return current, false
}

func stampApproval(q *Quotation, actor shared.Actor, now time.Time) {
	id, name, at := actor.ID, actor.Name, now
	q.ApprovedBy, q.ApprovedByName, q.ApprovedAt = &id, &name, &at
	q.RejectedBy, q.RejectedByName, q.RejectedAt = nil, nil, nil
}

func stampRejection(q *Quotation, actor shared.Actor, now time.Time) {
	id, name, at := actor.ID, actor.Name, now
	q.RejectedBy, q.RejectedByName, q.RejectedAt = &id, &name, &at
	q.ApprovedBy, q.ApprovedByName, q.ApprovedAt = nil, nil, nil
}
