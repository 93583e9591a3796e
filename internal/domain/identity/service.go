package identity

import (
	"context"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/hms/hms/internal/platform/apperror"
	"github.com/hms/hms/internal/platform/auth"
	"github.com/hms/hms/internal/platform/db"
)

const (
	minPasswordLength = 6
	maxPhoneLength    = 20
	clockLayout       = "15:04"
)

var defaultConsultationFee = decimal.NewFromInt(100)

// Options carries the collaborators that are not repositories.
type Options struct {
	Tokens              *auth.TokenIssuer
	Revoker             auth.Revoker
	GuestBookingEnabled bool
}

type Service struct {
	users       UserRepository
	patients    PatientRepository
	doctors     DoctorRepository
	admins      AdminRepository
	departments DepartmentRepository
	ratings     RatingRepository
	tx          db.Transactor
	opts        Options
}

func NewService(
	users UserRepository,
	patients PatientRepository,
	doctors DoctorRepository,
	admins AdminRepository,
	departments DepartmentRepository,
	ratings RatingRepository,
	tx db.Transactor,
	opts Options,
) *Service {
	return &Service{
		users:       users,
		patients:    patients,
		doctors:     doctors,
		admins:      admins,
		departments: departments,
		ratings:     ratings,
		tx:          tx,
		opts:        opts,
	}
}

// -- Registration --

type RegisterInput struct {
	Username  string
	Email     string
	Password  string
	FirstName string
	LastName  string
	Phone     string
	Address   string
	Profile   Profile
}

// Register creates the user and its single role profile atomically. For
// doctors the department is resolved by name first.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*User, error) {
	email, err := normalizeEmail(in.Email)
	if err != nil {
		return nil, err
	}
	if len(in.Password) < minPasswordLength {
		return nil, apperror.Validationf("password must be at least %d characters", minPasswordLength)
	}
	if strings.TrimSpace(in.FirstName) == "" {
		return nil, apperror.Validationf("first name is required")
	}
	if in.Profile == nil {
		return nil, apperror.Validationf("user type is required")
	}
	if err := validatePhone("phone", in.Phone); err != nil {
		return nil, err
	}
	if err := validateProfile(in.Profile); err != nil {
		return nil, err
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	username := strings.TrimSpace(in.Username)
	if username == "" {
		username = email
	}
	u := &User{
		Username:     username,
		Email:        email,
		FirstName:    strings.TrimSpace(in.FirstName),
		LastName:     strings.TrimSpace(in.LastName),
		Role:         in.Profile.Role(),
		Phone:        strings.TrimSpace(in.Phone),
		Address:      strings.TrimSpace(in.Address),
		PasswordHash: hash,
	}

	err = s.tx.WithTx(ctx, func(ctx context.Context) error {
		if err := s.users.Create(ctx, u); err != nil {
			return err
		}
		return s.createProfile(ctx, u, in.Profile)
	})
	if err != nil {
		return nil, err
	}
	return u, nil
}

func (s *Service) createProfile(ctx context.Context, u *User, profile Profile) error {
	switch p := profile.(type) {
	case PatientProfile:
		return s.patients.Create(ctx, &Patient{
			UserID:           u.ID,
			EmergencyContact: p.EmergencyContact,
			BloodGroup:       p.BloodGroup,
			MedicalHistory:   p.MedicalHistory,
		})
	case DoctorProfile:
		dept, err := s.departments.GetOrCreate(ctx, p.departmentName())
		if err != nil {
			return err
		}
		fee := defaultConsultationFee
		if p.ConsultationFee != nil {
			fee = *p.ConsultationFee
		}
		return s.doctors.Create(ctx, &Doctor{
			UserID:          u.ID,
			Specialization:  strings.TrimSpace(p.Specialization),
			LicenseNumber:   strings.TrimSpace(p.LicenseNumber),
			ExperienceYears: p.ExperienceYears,
			DepartmentID:    &dept.ID,
			IsAvailable:     true,
			ConsultationFee: fee,
			AvailableFrom:   p.AvailableFrom,
			AvailableTo:     p.AvailableTo,
		})
	case AdminProfile:
		return s.admins.Create(ctx, &Admin{
			UserID:     u.ID,
			EmployeeID: strings.TrimSpace(p.EmployeeID),
			Department: strings.TrimSpace(p.Department),
		})
	default:
		return apperror.Validationf("unsupported user type")
	}
}

func validateProfile(profile Profile) error {
	switch p := profile.(type) {
	case PatientProfile:
		return validatePhone("emergency contact", p.EmergencyContact)
	case DoctorProfile:
		if strings.TrimSpace(p.Specialization) == "" {
			return apperror.Validationf("specialization is required")
		}
		if strings.TrimSpace(p.LicenseNumber) == "" {
			return apperror.Validationf("license number is required")
		}
		if p.ExperienceYears < 0 {
			return apperror.Validationf("experience must not be negative")
		}
		if p.ConsultationFee != nil && p.ConsultationFee.IsNegative() {
			return apperror.Validationf("consultation fee must not be negative")
		}
		return validateWindow(p.AvailableFrom, p.AvailableTo)
	case AdminProfile:
		if strings.TrimSpace(p.EmployeeID) == "" {
			return apperror.Validationf("employee id is required")
		}
		if strings.TrimSpace(p.Department) == "" {
			return apperror.Validationf("department is required")
		}
		return nil
	default:
		return apperror.Validationf("unsupported user type")
	}
}

// validateWindow checks an optional HH:MM availability window.
func validatePhone(field, value string) error {
	if n := len([]rune(strings.TrimSpace(value))); n > maxPhoneLength {
		return apperror.Validationf("%s must be at most %d characters", field, maxPhoneLength)
	}
	return nil
}

func validateWindow(from, to *string) error {
	var start, end time.Time
	var err error
	if from != nil {
		if start, err = time.Parse(clockLayout, *from); err != nil {
			return apperror.Validationf("available_from must be HH:MM")
		}
	}
	if to != nil {
		if end, err = time.Parse(clockLayout, *to); err != nil {
			return apperror.Validationf("available_to must be HH:MM")
		}
	}
	if from != nil && to != nil && !end.After(start) {
		return apperror.Validationf("available_to must be after available_from")
	}
	return nil
}

func normalizeEmail(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", apperror.Validationf("email is required")
	}
	addr, err := mail.ParseAddress(raw)
	if err != nil || addr.Address != raw {
		return "", apperror.Validationf("invalid email address %q", raw)
	}
	return strings.ToLower(addr.Address), nil
}

// -- Sessions --

type LoginResult struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	UserID    uuid.UUID `json:"user_id"`
	UserType  Role      `json:"user_type"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
}

// Login accepts either the username or the email as handle.
func (s *Service) Login(ctx context.Context, handle, password string) (*LoginResult, error) {
	handle = strings.TrimSpace(handle)
	if handle == "" || password == "" {
		return nil, apperror.Validationf("username and password are required")
	}
	u, err := s.users.GetByLogin(ctx, handle)
	if err != nil {
		if apperror.Is(err, apperror.KindNotFound) {
			return nil, apperror.Unauthorized("invalid credentials")
		}
		return nil, err
	}
	if !auth.CheckPassword(u.PasswordHash, password) {
		return nil, apperror.Unauthorized("invalid credentials")
	}

	token, claims, err := s.opts.Tokens.Issue(u.ID.String(), string(u.Role))
	if err != nil {
		return nil, err
	}
	return &LoginResult{
		Token:     token,
		ExpiresAt: claims.ExpiresAt.Time,
		UserID:    u.ID,
		UserType:  u.Role,
		Email:     u.Email,
		Name:      u.FullName(),
	}, nil
}

// Logout revokes the token until it would have expired anyway.
func (s *Service) Logout(ctx context.Context, tokenID string, expiresAt time.Time) error {
	if tokenID == "" {
		return apperror.Unauthorized("authentication required")
	}
	if s.opts.Revoker == nil {
		return nil
	}
	return s.opts.Revoker.Revoke(ctx, tokenID, expiresAt)
}

// -- Guest provisioning --

type GuestInput struct {
	Email            string
	Name             string
	Phone            string
	Address          string
	EmergencyContact string
}

// EnsurePatient returns the patient behind the email, provisioning a guest
// account when none exists. Guests get an unusable credential and must
// reset it before they can log in. It joins the caller's transaction.
func (s *Service) EnsurePatient(ctx context.Context, in GuestInput) (*Patient, *User, bool, error) {
	email, err := normalizeEmail(in.Email)
	if err != nil {
		return nil, nil, false, err
	}

	u, err := s.users.GetByEmail(ctx, email)
	switch {
	case err == nil:
		if u.Role != RolePatient {
			return nil, nil, false, apperror.Validationf("email belongs to a %s account", u.Role)
		}
		p, err := s.patients.GetByUserID(ctx, u.ID)
		if err != nil {
			return nil, nil, false, err
		}
		return p, u, false, nil
	case !apperror.Is(err, apperror.KindNotFound):
		return nil, nil, false, err
	}

	if !s.opts.GuestBookingEnabled {
		return nil, nil, false, apperror.Validationf("no account exists for %s; please register first", email)
	}
	first, last := SplitName(in.Name)
	if first == "" {
		return nil, nil, false, apperror.Validationf("name is required")
	}
	if err := validatePhone("phone", in.Phone); err != nil {
		return nil, nil, false, err
	}
	if err := validatePhone("emergency contact", in.EmergencyContact); err != nil {
		return nil, nil, false, err
	}
	hash, err := auth.UnusablePassword()
	if err != nil {
		return nil, nil, false, err
	}

	u = &User{
		Username:     email,
		Email:        email,
		FirstName:    first,
		LastName:     last,
		Role:         RolePatient,
		Phone:        strings.TrimSpace(in.Phone),
		Address:      strings.TrimSpace(in.Address),
		PasswordHash: hash,
	}
	p := &Patient{EmergencyContact: strings.TrimSpace(in.EmergencyContact)}
	err = s.tx.WithTx(ctx, func(ctx context.Context) error {
		if err := s.users.Create(ctx, u); err != nil {
			return err
		}
		p.UserID = u.ID
		return s.patients.Create(ctx, p)
	})
	if err != nil {
		return nil, nil, false, err
	}
	return p, u, true, nil
}

// -- Lookups --

func (s *Service) GetUser(ctx context.Context, id uuid.UUID) (*User, error) {
	return s.users.GetByID(ctx, id)
}

func (s *Service) GetPatient(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return s.patients.GetByID(ctx, id)
}

func (s *Service) GetPatientByUserID(ctx context.Context, userID uuid.UUID) (*Patient, error) {
	return s.patients.GetByUserID(ctx, userID)
}

// -- Doctors --

func (s *Service) ListDoctors(ctx context.Context, f DoctorFilter, limit, offset int) ([]*Doctor, int, error) {
	return s.doctors.List(ctx, f, limit, offset)
}

func (s *Service) GetDoctor(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	return s.doctors.GetByID(ctx, id)
}

func (s *Service) GetDoctorByUserID(ctx context.Context, userID uuid.UUID) (*Doctor, error) {
	return s.doctors.GetByUserID(ctx, userID)
}

// FindDoctorByID and FindDoctorsByFirstName back the appointment doctor
// matchers.
func (s *Service) FindDoctorByID(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	return s.doctors.GetByID(ctx, id)
}

func (s *Service) FindDoctorsByFirstName(ctx context.Context, fragment string) ([]*Doctor, error) {
	return s.doctors.FindByFirstName(ctx, fragment)
}

type AvailabilityInput struct {
	Available bool
	From      *string
	To        *string
}

// SetDoctorAvailability may be called by the doctor themself or an admin.
func (s *Service) SetDoctorAvailability(ctx context.Context, actorID uuid.UUID, actorRole Role, doctorID uuid.UUID, in AvailabilityInput) (*Doctor, error) {
	d, err := s.doctors.GetByID(ctx, doctorID)
	if err != nil {
		return nil, err
	}
	if actorRole != RoleAdmin && d.UserID != actorID {
		return nil, apperror.Forbiddenf("only the doctor or an admin can change availability")
	}
	if err := validateWindow(in.From, in.To); err != nil {
		return nil, err
	}
	if err := s.doctors.SetAvailability(ctx, doctorID, in.Available, in.From, in.To); err != nil {
		return nil, err
	}
	return s.doctors.GetByID(ctx, doctorID)
}

// -- Ratings --

type RatingInput struct {
	Rating  *int
	Comment string
}

// RateDoctor records a rating from the calling patient. An omitted rating
// counts as 5.
func (s *Service) RateDoctor(ctx context.Context, patientUserID, doctorID uuid.UUID, in RatingInput) (*DoctorRating, error) {
	rating := 5
	if in.Rating != nil {
		rating = *in.Rating
	}
	if rating < 1 || rating > 5 {
		return nil, apperror.Validationf("rating must be between 1 and 5")
	}

	patient, err := s.patients.GetByUserID(ctx, patientUserID)
	if err != nil {
		if apperror.Is(err, apperror.KindNotFound) {
			return nil, apperror.Forbiddenf("only patients can rate doctors")
		}
		return nil, err
	}
	if _, err := s.doctors.GetByID(ctx, doctorID); err != nil {
		return nil, err
	}

	r := &DoctorRating{
		DoctorID:  doctorID,
		PatientID: &patient.ID,
		Rating:    rating,
		Comment:   strings.TrimSpace(in.Comment),
	}
	if err := s.ratings.Create(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

func (s *Service) ListDoctorRatings(ctx context.Context, doctorID uuid.UUID, limit, offset int) ([]*DoctorRating, int, error) {
	if _, err := s.doctors.GetByID(ctx, doctorID); err != nil {
		return nil, 0, err
	}
	return s.ratings.ListByDoctor(ctx, doctorID, limit, offset)
}

// -- Departments --

func (s *Service) ListDepartments(ctx context.Context) ([]*Department, error) {
	return s.departments.List(ctx)
}

// GetOrCreateDepartment is the idempotent name-keyed upsert. Names are
// matched exactly.
func (s *Service) GetOrCreateDepartment(ctx context.Context, name string) (*Department, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperror.Validationf("department name is required")
	}
	return s.departments.GetOrCreate(ctx, name)
}
