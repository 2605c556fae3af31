// Package model defines the wire types served by the fixture: users and
// their roles, catalog items, franchises, and order history. A User never
// carries a password; credentials live beside the user in the store so a
// marshalled User can be handed to callers as-is.
package model

// Role names understood by the ordering application.
const (
	RoleDiner      = "diner"
	RoleFranchisee = "franchisee"
	RoleAdmin      = "admin"
)

// Role tags a user with a capability. Franchisee roles carry the
// franchise they administer in ObjectID.
type Role struct {
	Role     string `json:"role" yaml:"role"`
	ObjectID string `json:"objectId,omitempty" yaml:"objectId,omitempty"`
}

// User is the sanitized identity returned by every auth and user route.
type User struct {
	ID    int64  `json:"id" yaml:"id"`
	Name  string `json:"name" yaml:"name"`
	Email string `json:"email" yaml:"email"`
	Roles []Role `json:"roles" yaml:"roles"`
}

// HasRole reports whether the user carries the named role.
func (u User) HasRole(name string) bool {
	for _, r := range u.Roles {
		if r.Role == name {
			return true
		}
	}
	return false
}

// Pizza is a menu item. Prices are fractional units, matching the
// ordering UI's bitcoin-flavoured pricing.
type Pizza struct {
	ID          int64   `json:"id" yaml:"id"`
	Title       string  `json:"title" yaml:"title"`
	Image       string  `json:"image" yaml:"image"`
	Price       float64 `json:"price" yaml:"price"`
	Description string  `json:"description" yaml:"description"`
}

// Store is a franchise location.
type Store struct {
	ID           int64   `json:"id" yaml:"id"`
	Name         string  `json:"name" yaml:"name"`
	TotalRevenue float64 `json:"totalRevenue,omitempty" yaml:"totalRevenue,omitempty"`
}

// AdminRef is the summary of a franchise administrator embedded in
// franchise listings.
type AdminRef struct {
	Email string `json:"email" yaml:"email"`
	ID    string `json:"id,omitempty" yaml:"id,omitempty"`
	Name  string `json:"name,omitempty" yaml:"name,omitempty"`
}

// Franchise groups stores under a named owner.
type Franchise struct {
	ID      int64      `json:"id" yaml:"id"`
	Name    string     `json:"name" yaml:"name"`
	Admins  []AdminRef `json:"admins,omitempty" yaml:"admins,omitempty"`
	Stores  []Store    `json:"stores" yaml:"stores"`
}

// FranchiseList is the paged franchise listing shape.
type FranchiseList struct {
	Franchises []Franchise `json:"franchises" yaml:"franchises"`
	More       bool        `json:"more" yaml:"more"`
}

// OrderItem is a single line of an order.
type OrderItem struct {
	MenuID      int64   `json:"menuId" yaml:"menuId"`
	Description string  `json:"description" yaml:"description"`
	Price       float64 `json:"price" yaml:"price"`
}

// Order is a placed order as it appears in order history.
type Order struct {
	ID          string      `json:"id" yaml:"id"`
	FranchiseID int64       `json:"franchiseId" yaml:"franchiseId"`
	StoreID     int64       `json:"storeId" yaml:"storeId"`
	Date        string      `json:"date,omitempty" yaml:"date,omitempty"`
	Items       []OrderItem `json:"items" yaml:"items"`
}

// OrderHistory groups a diner's orders.
type OrderHistory struct {
	ID      string  `json:"id" yaml:"id"`
	DinerID string  `json:"dinerId" yaml:"dinerId"`
	Orders  []Order `json:"orders" yaml:"orders"`
}
