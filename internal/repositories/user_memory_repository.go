package repositories

import (
	"context"
	"sort"
	"strings"
	"time"

	"carshop/internal/models"

	"github.com/google/uuid"
)

// MemoryUserRepository is an in-memory implementation of UserRepository.
type MemoryUserRepository struct {
	view *memoryView
}

// Create adds a new user. Emails are unique and stored lower-cased.
func (r *MemoryUserRepository) Create(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	user.Email = strings.ToLower(user.Email)
	now := time.Now()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now
	return r.view.write(func(d *memoryData) error {
		for _, u := range d.users {
			if u.Email == user.Email {
				return ErrDuplicateKey
			}
		}
		if _, ok := d.users[user.ID]; ok {
			return ErrDuplicateKey
		}
		d.users[user.ID] = *user
		return nil
	})
}

// GetByEmail returns a user by email.
func (r *MemoryUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	email = strings.ToLower(email)
	var user *models.User
	_ = r.view.read(func(d *memoryData) error {
		for _, u := range d.users {
			if u.Email == email {
				found := u
				user = &found
				break
			}
		}
		return nil
	})
	if user == nil {
		return nil, ErrRecordNotFound
	}
	return user, nil
}

// GetByID returns a user by ID.
func (r *MemoryUserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	var user *models.User
	_ = r.view.read(func(d *memoryData) error {
		if u, ok := d.users[id]; ok {
			user = &u
		}
		return nil
	})
	if user == nil {
		return nil, ErrRecordNotFound
	}
	return user, nil
}

// GetAll returns one page of users matching query.
func (r *MemoryUserRepository) GetAll(ctx context.Context, query UserQuery) ([]models.User, PageMeta, error) {
	page := query.Pagination.normalize()
	var users []models.User
	_ = r.view.read(func(d *memoryData) error {
		for _, u := range d.users {
			if query.Role != "" && u.Role != query.Role {
				continue
			}
			if query.IsBlocked != nil && u.IsBlocked != *query.IsBlocked {
				continue
			}
			users = append(users, u)
		}
		return nil
	})

	key, _, desc := parseSort(page.Sort, userSortColumns)
	less := func(a, b models.User) bool {
		switch key {
		case "name":
			return a.Name < b.Name
		case "email":
			return a.Email < b.Email
		default:
			return a.CreatedAt.Before(b.CreatedAt)
		}
	}
	sort.SliceStable(users, func(i, j int) bool {
		if desc {
			return less(users[j], users[i])
		}
		return less(users[i], users[j])
	})
	return paginate(users, page), newPageMeta(page, int64(len(users))), nil
}

// Update overwrites a user's mutable fields.
func (r *MemoryUserRepository) Update(ctx context.Context, user *models.User) error {
	return r.view.write(func(d *memoryData) error {
		stored, ok := d.users[user.ID]
		if !ok {
			return ErrRecordNotFound
		}
		stored.Name = user.Name
		stored.Phone = user.Phone
		stored.Password = user.Password
		stored.Role = user.Role
		stored.IsBlocked = user.IsBlocked
		stored.UpdatedAt = time.Now()
		d.users[user.ID] = stored
		user.Email = stored.Email
		user.CreatedAt = stored.CreatedAt
		user.UpdatedAt = stored.UpdatedAt
		return nil
	})
}
