package domain

// CounterpartyKind distinguishes the two sides of the mailbox.
type CounterpartyKind string

const (
	CounterpartyClient CounterpartyKind = "client"
	CounterpartyStaff  CounterpartyKind = "staff"
)

// Well-known recipient group identifiers resolved against the directory.
const (
	GroupAllMonotributistas = "all-monotributistas"
	GroupStaff              = "staff"
	GroupAssignedClients    = "assigned-clients"
)

// Counterparty is the directory projection of someone who can take part in
// a conversation. The directory itself is an external collaborator; this is
// only the slice of it the mailbox needs.
type Counterparty struct {
	ID              string           `json:"id"`
	DisplayName     string           `json:"displayName"`
	Kind            CounterpartyKind `json:"kind"`
	Classification  string           `json:"classification,omitempty"` // e.g. monotributo category "A".."K"
	AssignedStaffID string           `json:"assignedStaffId,omitempty"`
}
