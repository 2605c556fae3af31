package store

import "github.com/jwtpizza/api_fixture/pkg/fixture/model"

// RegisteredUserID is assigned to every user created through the
// registration route. The harness never allocates ids.
const RegisteredUserID int64 = 42

// defaultSeedUsers returns the seed user table in declaration order.
// Listing routes preserve this order.
func defaultSeedUsers() []SeededUser {
	return []SeededUser{
		{
			Password: "a",
			User: model.User{
				ID:    3,
				Name:  "Kai Chen",
				Email: "d@jwt.com",
				Roles: []model.Role{{Role: model.RoleDiner}},
			},
		},
		{
			Password: "franchisee",
			User: model.User{
				ID:    7,
				Name:  "Fran Chisee",
				Email: "f@jwt.com",
				Roles: []model.Role{{Role: model.RoleFranchisee, ObjectID: "99"}},
			},
		},
		{
			Password: "admin",
			User: model.User{
				ID:    1,
				Name:  "Admin User",
				Email: "a@jwt.com",
				Roles: []model.Role{{Role: model.RoleAdmin}},
			},
		},
	}
}

// DefaultMenu returns the built-in pizza list. The docs route serves it
// regardless of any configured menu override.
func DefaultMenu() []model.Pizza {
	return defaultMenu()
}

func defaultMenu() []model.Pizza {
	return []model.Pizza{
		{ID: 1, Title: "Veggie", Image: "pizza1.png", Price: 0.0038, Description: "A garden of delight"},
		{ID: 2, Title: "Pepperoni", Image: "pizza2.png", Price: 0.0042, Description: "Spicy treat"},
	}
}

func defaultFranchiseList() model.FranchiseList {
	return model.FranchiseList{
		Franchises: []model.Franchise{
			{
				ID:     2,
				Name:   "LotaPizza",
				Admins: []model.AdminRef{{Email: "f@jwt.com", Name: "Fran Chisee"}},
				Stores: []model.Store{
					{ID: 4, Name: "Lehi", TotalRevenue: 123.45},
					{ID: 5, Name: "Springville", TotalRevenue: 67.89},
				},
			},
		},
		More: false,
	}
}
