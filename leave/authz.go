/*
authz.go - Role and mapping authorization, person provisioning

PURPOSE:
  Resolves the manager↔employee mapping and gates manager-scoped queries.
  Also owns person provisioning and the administrative mutations that change
  who holds which role:

  - EnsurePerson: create-on-first-contact (default Intern, monthly allowance)
  - CreateManager / Promote: manager provisioning; promotion resets the
    balance to the yearly grant unconditionally and is not reversible
  - AssignManager: replace the employee's single active mapping
  - GrantAdmin, RequireAdmin: the admin gate for the commands above

SEE ALSO:
  - lifecycle.go: ResolveManager routes a new request to its approver
  - api/handlers.go: the admin endpoints
*/
package leave

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Authorizer resolves mappings and performs role mutations.
type Authorizer struct {
	Store Store
	Clock Clock
}

func NewAuthorizer(store Store, clock Clock) *Authorizer {
	return &Authorizer{Store: store, Clock: clock}
}

// =============================================================================
// PROVISIONING
// =============================================================================

// EnsurePerson returns the person, creating them on first contact with role
// Intern, the monthly allowance, the current month as reset period, and a
// unique calendar color.
func (a *Authorizer) EnsurePerson(ctx context.Context, id, displayName string) (*Person, error) {
	p, err := a.Store.GetPerson(ctx, id)
	if err == nil {
		return p, nil
	}
	if !IsNotFound(err) {
		return nil, err
	}

	created := Person{
		ID:              id,
		Name:            displayName,
		Role:            RoleIntern,
		Balance:         InternMonthlyAllowance,
		LastResetPeriod: a.Clock.Today().MonthToken(),
		CreatedAt:       time.Now().UTC(),
	}
	if created.Name == "" {
		created.Name = id
	}
	if err := AssignColor(ctx, a.Store, &created); err != nil {
		// cosmetic only
		log.Printf("[authz] color assignment for %s failed: %v", id, err)
	}
	if err := a.Store.SavePerson(ctx, created); err != nil {
		return nil, err
	}
	log.Printf("[authz] provisioned %s (%s) as %s", created.ID, created.Name, created.Role)
	return &created, nil
}

// CreateManager provisions a new person directly in the Manager role with
// the yearly grant. Fails if the person already exists.
func (a *Authorizer) CreateManager(ctx context.Context, id, name string) (*Person, error) {
	if _, err := a.Store.GetPerson(ctx, id); err == nil {
		return nil, fmt.Errorf("person %s already exists", id)
	} else if !IsNotFound(err) {
		return nil, err
	}

	m := Person{
		ID:              id,
		Name:            name,
		Role:            RoleManager,
		Balance:         ManagerYearlyGrant,
		LastResetPeriod: a.Clock.Today().YearToken(),
		CreatedAt:       time.Now().UTC(),
	}
	if err := AssignColor(ctx, a.Store, &m); err != nil {
		log.Printf("[authz] color assignment for %s failed: %v", id, err)
	}
	if err := a.Store.SavePerson(ctx, m); err != nil {
		return nil, err
	}
	return &m, nil
}

// =============================================================================
// ROLE MUTATIONS
// =============================================================================

// Promote raises an intern to Manager and resets their balance to the
// yearly grant, independent of accrual state. There is no demotion path.
func (a *Authorizer) Promote(ctx context.Context, personID string) (*Person, error) {
	p, err := a.Store.GetPerson(ctx, personID)
	if err != nil {
		return nil, err
	}
	if p.Role == RoleManager {
		return nil, fmt.Errorf("%s is already a manager", personID)
	}

	err = a.Store.WithTx(ctx, func(tx Store) error {
		p.Role = RoleManager
		p.Balance = ManagerYearlyGrant
		p.LastResetPeriod = a.Clock.Today().YearToken()
		if err := tx.UpdatePerson(ctx, *p); err != nil {
			return err
		}
		return tx.AppendLedger(ctx, LedgerEntry{
			ID:           uuid.NewString(),
			PersonID:     p.ID,
			Kind:         LedgerGrant,
			Delta:        decimal.NewFromInt(ManagerYearlyGrant),
			BalanceAfter: p.Balance,
			Note:         "promoted to manager",
			At:           time.Now().UTC(),
		})
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

// GrantAdmin marks the person as an admin.
func (a *Authorizer) GrantAdmin(ctx context.Context, personID string) (*Person, error) {
	p, err := a.Store.GetPerson(ctx, personID)
	if err != nil {
		return nil, err
	}
	p.IsAdmin = true
	if err := a.Store.UpdatePerson(ctx, *p); err != nil {
		return nil, err
	}
	return p, nil
}

// RequireAdmin fails with ErrAdminRequired unless the person is an admin.
func (a *Authorizer) RequireAdmin(ctx context.Context, personID string) error {
	p, err := a.Store.GetPerson(ctx, personID)
	if err != nil {
		if IsNotFound(err) {
			return ErrAdminRequired
		}
		return err
	}
	if !p.IsAdmin {
		return ErrAdminRequired
	}
	return nil
}

// =============================================================================
// MAPPINGS
// =============================================================================

// AssignManager replaces the employee's active mapping with the given
// manager. The manager must exist and hold the Manager role.
func (a *Authorizer) AssignManager(ctx context.Context, employeeID, managerID string) error {
	if _, err := a.Store.GetPerson(ctx, employeeID); err != nil {
		return err
	}
	m, err := a.Store.GetPerson(ctx, managerID)
	if err != nil {
		return err
	}
	if m.Role != RoleManager {
		return ErrManagerRoleRequired
	}
	return a.Store.SetMapping(ctx, Mapping{EmployeeID: employeeID, ManagerID: managerID})
}

// ResolveManager returns the employee's active mapping, or ErrNoManagerMapped.
func (a *Authorizer) ResolveManager(ctx context.Context, employeeID string) (*Mapping, error) {
	return a.Store.GetMappingByEmployee(ctx, employeeID)
}

// AuthorizeHistory confirms a mapping links the manager to the employee
// before the manager may view that employee's leave history. An existing
// employee with no mapping to this manager yields ErrNotYourEmployee.
func (a *Authorizer) AuthorizeHistory(ctx context.Context, employeeID, managerID string) error {
	mgr, err := a.Store.GetPerson(ctx, managerID)
	if err != nil {
		return err
	}
	if mgr.Role != RoleManager {
		return ErrManagerRoleRequired
	}
	if _, err := a.Store.GetPerson(ctx, employeeID); err != nil {
		return err
	}
	if _, err := a.Store.GetMapping(ctx, employeeID, managerID); err != nil {
		if IsNotFound(err) {
			return ErrNotYourEmployee
		}
		return err
	}
	return nil
}
