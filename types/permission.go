package types

// Permission names a guarded operation.
type Permission string

const (
	PermPostEvent   Permission = "post_event"
	PermGetEvents   Permission = "get_events"
	PermGetEvent    Permission = "get_event"
	PermPutEvent    Permission = "put_event"
	PermDeleteEvent Permission = "delete_event"
	PermDeleteUser  Permission = "delete_user"
	PermPutUser     Permission = "put_user"
)

// PermissionTable maps each role to the operations it may perform.
type PermissionTable map[Role][]Permission

// DefaultPermissions returns the permission table used by the server.
func DefaultPermissions() PermissionTable {
	return PermissionTable{
		RoleAdmin: {PermPostEvent, PermGetEvents, PermGetEvent, PermPutEvent, PermDeleteEvent, PermDeleteUser, PermPutUser},
		RoleHost:  {PermPostEvent, PermGetEvents, PermGetEvent, PermPutEvent, PermDeleteEvent},
		RoleGuest: {PermGetEvents, PermGetEvent},
	}
}
