package model

// Role is a named permission set assigned to a user.
type Role struct {
	ID          int    `json:"id" db:"id"`
	Name        string `json:"name" db:"name"`
	Code        string `json:"code" db:"code"`
	Description string `json:"description,omitempty" db:"description"`
}

// Shop is a tenant/branch context. Director-level users may switch
// between the shops they have access to.
type Shop struct {
	ID       int    `json:"id" db:"id"`
	Name     string `json:"name" db:"name"`
	Code     string `json:"code" db:"code"`
	Address  string `json:"address,omitempty" db:"address"`
	Phone    string `json:"phone,omitempty" db:"phone"`
	Email    string `json:"email,omitempty" db:"email"`
	IsActive bool   `json:"is_active" db:"is_active"`
	Timezone string `json:"timezone,omitempty" db:"timezone"`
	Currency string `json:"currency,omitempty" db:"currency"`
}

// User is the identity record returned by the login and "who am I" endpoints.
type User struct {
	ID         int    `json:"id"`
	Username   string `json:"username"`
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
	MiddleName string `json:"middle_name,omitempty"`
	Email      string `json:"email"`
	Phone      string `json:"phone,omitempty"`
	IsDirector bool   `json:"is_director"`

	// CurrentShop is the shop context the server currently has this
	// user operating in, if any.
	CurrentShop *Shop `json:"current_shop,omitempty"`

	// Role is the user's assigned role, if any.
	Role *Role `json:"role,omitempty"`
}

// DisplayName returns "Last First" with a fallback to the username.
func (u User) DisplayName() string {
	if u.LastName == "" && u.FirstName == "" {
		return u.Username
	}
	if u.FirstName == "" {
		return u.LastName
	}
	if u.LastName == "" {
		return u.FirstName
	}
	return u.LastName + " " + u.FirstName
}
