package dto

import "github.com/noah-isme/campus-request-api/internal/models"

// RegisterRequest creates an inactive student account.
type RegisterRequest struct {
	Identity string `json:"username" validate:"required,alphanum,min=3,max=64"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

// RegisterResponse returns the activation code the portal mails out.
type RegisterResponse struct {
	Account        models.Account `json:"account"`
	ActivationCode string         `json:"activationCode"`
}

// ActivateRequest confirms an email address.
type ActivateRequest struct {
	Email string `json:"email" validate:"required,email"`
	Code  string `json:"code" validate:"required"`
}

// LoginRequest holds portal credentials.
type LoginRequest struct {
	Identity string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// CreateAccountRequest is the admin payload for provisioning accounts with an explicit role.
type CreateAccountRequest struct {
	Identity string      `json:"username" validate:"required,alphanum,min=3,max=64"`
	Email    string      `json:"email" validate:"required,email"`
	Password string      `json:"password" validate:"required,min=8,max=72"`
	Role     models.Role `json:"role" validate:"required,oneof=STUDENT STAFF ADMIN"`
	Courses  []string    `json:"courses" validate:"omitempty,max=32,dive,max=64"`
}

// ActivateByEmailRequest lets an admin activate without a code.
type ActivateByEmailRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// ForgotPasswordRequest asks for a password reset notice.
type ForgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// SetCoursesRequest replaces a student's course list.
type SetCoursesRequest struct {
	Courses []string `json:"courses" validate:"max=32,dive,max=64"`
}

// CoursesResponse lists the courses on an account.
type CoursesResponse struct {
	Identity string   `json:"username"`
	Courses  []string `json:"courses"`
}
