package rbac

// Permission names gate every state-changing action. Roles are seeded in the
// database; permissions are granted per role through role_permissions.
const (
	PermOrderView    = "order.view"
	PermOrderCreate  = "order.create"
	PermOrderUpdate  = "order.update"
	PermOrderDelete  = "order.delete"
	PermOrderDecode  = "order.decode"
	PermOrderApprove = "order.approve"
	PermOrderQuote   = "order.quote"

	PermDispatchCreate = "dispatch.create"
	PermDispatchView   = "dispatch.view"

	PermOutstandingView = "outstanding.view"

	PermCatalogView   = "catalog.view"
	PermCatalogManage = "catalog.manage"

	PermPriceListManage = "pricelist.manage"
)

// Workflow roles may see every order regardless of ownership; plain sales
// reps only see their own.
var workflowRoles = map[string]struct{}{
	"decoder":         {},
	"quoter":          {},
	"inventory_admin": {},
	"executive":       {},
}

// CanAccessAllOrders reports whether the role sees orders it did not create.
func CanAccessAllOrders(role string) bool {
	_, ok := workflowRoles[role]
	return ok
}
