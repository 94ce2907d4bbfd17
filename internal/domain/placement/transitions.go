package placement

import "fmt"

type RequestAction string

const (
	RequestAcceptResponse RequestAction = "accept_response"
	RequestFulfill        RequestAction = "fulfill"
	RequestExpire         RequestAction = "expire"
	RequestCancel         RequestAction = "cancel"
	RequestReopen         RequestAction = "reopen"
)

type ResponseAction string

const (
	ResponseAccept ResponseAction = "accept"
	ResponseReject ResponseAction = "reject"
	ResponseCancel ResponseAction = "cancel"
	// ResponseRelease libera la respuesta aceptada cuando su transferencia
	// se rechaza o cancela, para que el aviso pueda aceptar otra.
	ResponseRelease ResponseAction = "release"
)

type TransferAction string

const (
	TransferConfirm TransferAction = "confirm"
	TransferReject  TransferAction = "reject"
	TransferCancel  TransferAction = "cancel"
)

type AssignmentAction string

const (
	AssignmentComplete AssignmentAction = "complete"
)

type HandoverAction string

const (
	HandoverConfirm  HandoverAction = "confirm"
	HandoverDispute  HandoverAction = "dispute"
	HandoverComplete HandoverAction = "complete"
)

// table es estado actual -> acción -> estado siguiente.
type table[S ~string, A ~string] map[S]map[A]S

func (t table[S, A]) next(from S, action A) (S, bool) {
	to, ok := t[from][action]
	return to, ok
}

// actions devuelve las acciones permitidas desde un estado, en orden estable.
func (t table[S, A]) actions(from S, order []A) []A {
	out := make([]A, 0, len(t[from]))
	for _, a := range order {
		if _, ok := t[from][a]; ok {
			out = append(out, a)
		}
	}
	return out
}

var requestTransitions = table[RequestStatus, RequestAction]{
	RequestOpen: {
		RequestAcceptResponse: RequestPendingReview,
		RequestFulfill:        RequestFulfilled,
		RequestExpire:         RequestExpired,
		RequestCancel:         RequestCancelled,
	},
	RequestPendingReview: {
		RequestAcceptResponse: RequestPendingReview,
		RequestFulfill:        RequestFulfilled,
		RequestCancel:         RequestCancelled,
		RequestReopen:         RequestOpen,
	},
}

var responseTransitions = table[ResponseStatus, ResponseAction]{
	ResponsePending: {
		ResponseAccept: ResponseAccepted,
		ResponseReject: ResponseRejected,
		ResponseCancel: ResponseCancelled,
	},
	ResponseAccepted: {
		ResponseRelease: ResponseCancelled,
	},
}

var transferTransitions = table[TransferStatus, TransferAction]{
	TransferPending: {
		TransferConfirm: TransferConfirmed,
		TransferReject:  TransferRejected,
		TransferCancel:  TransferCancelled,
	},
}

var assignmentTransitions = table[AssignmentStatus, AssignmentAction]{
	AssignmentActive: {
		AssignmentComplete: AssignmentCompleted,
	},
}

// complete desde pending saltea la confirmación del owner. Se mantiene así
// y queda señalado en DESIGN.md.
var handoverTransitions = table[HandoverStatus, HandoverAction]{
	HandoverPending: {
		HandoverConfirm:  HandoverConfirmed,
		HandoverDispute:  HandoverDisputed,
		HandoverComplete: HandoverCompleted,
	},
	HandoverConfirmed: {
		HandoverComplete: HandoverCompleted,
	},
}

func nextRequest(from RequestStatus, a RequestAction) (RequestStatus, error) {
	return step(requestTransitions, "placement request", from, a)
}

func nextResponse(from ResponseStatus, a ResponseAction) (ResponseStatus, error) {
	return step(responseTransitions, "placement response", from, a)
}

func nextTransfer(from TransferStatus, a TransferAction) (TransferStatus, error) {
	return step(transferTransitions, "transfer request", from, a)
}

func nextAssignment(from AssignmentStatus, a AssignmentAction) (AssignmentStatus, error) {
	return step(assignmentTransitions, "foster assignment", from, a)
}

func nextHandover(from HandoverStatus, a HandoverAction) (HandoverStatus, error) {
	return step(handoverTransitions, "return handover", from, a)
}

func step[S ~string, A ~string](t table[S, A], entity string, from S, a A) (S, error) {
	to, ok := t.next(from, a)
	if !ok {
		return from, conflictf("%s is %s; cannot %s", entity, from, a)
	}
	return to, nil
}

func conflictf(format string, args ...any) error {
	return &transitionError{msg: fmt.Sprintf(format, args...)}
}
