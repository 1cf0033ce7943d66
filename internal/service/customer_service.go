package service

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/vbonduro/cashreg/internal/domain"
)

// customerRepository is the subset of store.CustomerStore that CustomerService requires.
type customerRepository interface {
	Create(ctx context.Context, c *domain.Customer) (int64, error)
	GetByID(ctx context.Context, id int64) (*domain.Customer, error)
	FindByEmail(ctx context.Context, email string) ([]*domain.Customer, error)
	List(ctx context.Context) ([]*domain.Customer, error)
	Update(ctx context.Context, c *domain.Customer) error
	Delete(ctx context.Context, id int64) error
}

type CustomerOptions struct {
	Phone   string
	Address string
	City    string
	State   string
	ZipCode string
}

type CustomerService struct {
	repo   customerRepository
	logger *slog.Logger
	now    func() time.Time
}

func NewCustomerService(repo customerRepository, logger *slog.Logger) *CustomerService {
	return &CustomerService{repo: repo, logger: logger, now: time.Now}
}

// Create records a verified customer. idImagePath must point at an image that
// has already been captured. A new record is written on every verification.
func (s *CustomerService) Create(ctx context.Context, firstName, lastName, email string, dob time.Time, idImagePath string, opts CustomerOptions) (int64, error) {
	c := &domain.Customer{
		FirstName:   normaliseName(firstName),
		LastName:    normaliseName(lastName),
		Email:       strings.ToLower(strings.TrimSpace(email)),
		DOB:         dob,
		IDImagePath: strings.TrimSpace(idImagePath),
		Phone:       strings.TrimSpace(opts.Phone),
		Address:     strings.TrimSpace(opts.Address),
		City:        strings.TrimSpace(opts.City),
		State:       strings.TrimSpace(opts.State),
		ZipCode:     strings.TrimSpace(opts.ZipCode),
		DateAdded:   s.now(),
	}
	if err := s.validate(c); err != nil {
		s.logger.Error("customer not created", "email", c.Email, "error", err)
		return 0, err
	}

	id, err := s.repo.Create(ctx, c)
	if err != nil {
		s.logger.Error("customer not created", "email", c.Email, "error", err)
		return 0, err
	}
	s.logger.Info("customer created", "id", id)
	return id, nil
}

func (s *CustomerService) Get(ctx context.Context, id int64) (*domain.Customer, error) {
	c, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, fmt.Errorf("customer %d %w", id, domain.ErrNotFound)
	}
	return c, nil
}

func (s *CustomerService) FindByEmail(ctx context.Context, email string) ([]*domain.Customer, error) {
	return s.repo.FindByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
}

func (s *CustomerService) List(ctx context.Context) ([]*domain.Customer, error) {
	return s.repo.List(ctx)
}

func (s *CustomerService) Update(ctx context.Context, c *domain.Customer) error {
	c.FirstName = normaliseName(c.FirstName)
	c.LastName = normaliseName(c.LastName)
	c.Email = strings.ToLower(strings.TrimSpace(c.Email))
	if err := s.validate(c); err != nil {
		return err
	}
	if err := s.repo.Update(ctx, c); err != nil {
		s.logger.Error("customer not updated", "id", c.ID, "error", err)
		return err
	}
	return nil
}

func (s *CustomerService) Delete(ctx context.Context, id int64) error {
	return s.repo.Delete(ctx, id)
}

// Age is the customer's age in whole years at the service clock's now.
func (s *CustomerService) Age(c *domain.Customer) int {
	return ageOn(c.DOB, s.now())
}

// VerifyAge fails with ErrUnderage when c is younger than minAge.
func (s *CustomerService) VerifyAge(c *domain.Customer, minAge int) error {
	if age := s.Age(c); age < minAge {
		return fmt.Errorf("customer %d is %d, minimum is %d: %w", c.ID, age, minAge, domain.ErrUnderage)
	}
	return nil
}

func (s *CustomerService) validate(c *domain.Customer) error {
	v := domain.NewValidationError("customer")
	if c.FirstName == "" {
		v.Addf("first_name", "is required")
	}
	if c.LastName == "" {
		v.Addf("last_name", "is required")
	}
	if c.Email == "" {
		v.Addf("email", "is required")
	} else if !strings.Contains(c.Email, "@") {
		v.Addf("email", "%q is not an email address", c.Email)
	}
	if c.DOB.IsZero() {
		v.Addf("dob", "is required")
	} else if c.DOB.After(s.now()) {
		v.Addf("dob", "must not be in the future")
	}
	if c.IDImagePath == "" {
		v.Addf("id_image_path", "is required")
	} else if info, err := os.Stat(c.IDImagePath); err != nil || info.IsDir() {
		v.Addf("id_image_path", "%s is not a captured image", c.IDImagePath)
	}
	return v.ErrorOrNil()
}

func normaliseName(s string) string {
	return cases.Title(language.Und, cases.NoLower).String(strings.TrimSpace(s))
}

func ageOn(dob, now time.Time) int {
	age := now.Year() - dob.Year()
	if now.Month() < dob.Month() || (now.Month() == dob.Month() && now.Day() < dob.Day()) {
		age--
	}
	return age
}
