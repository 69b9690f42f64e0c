package shared

// Entity type labels for polymorphic references (approvals, attachments,
// audit logs). Lookups always carry the label together with the id.
const (
	EntityOrder    = "order"
	EntityDispatch = "dispatch"
)
