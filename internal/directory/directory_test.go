package directory

import (
	"errors"
	"testing"
	"time"

	"github.com/ironlady-io/bridge/internal/store"
	"github.com/ironlady-io/bridge/pkg/protocol"
)

func TestFirstAccessSeedsStockRows(t *testing.T) {
	svc := NewService(store.NewMemoryStore())

	programs, err := svc.Programs()
	if err != nil {
		t.Fatal(err)
	}
	if len(programs) != 2 || programs[0].ID != "P-1" || programs[1].Name != "100 Board Members" {
		t.Errorf("unexpected program seed %+v", programs)
	}

	mentors, err := svc.Mentors()
	if err != nil {
		t.Fatal(err)
	}
	if len(mentors) != 1 || mentors[0].Name != "Suvarna Hegde" {
		t.Errorf("unexpected mentor seed %+v", mentors)
	}

	staff, err := svc.Staff()
	if err != nil {
		t.Fatal(err)
	}
	if len(staff) != 1 || staff[0].Role != protocol.RoleAdmin {
		t.Errorf("unexpected staff seed %+v", staff)
	}

	customers, err := svc.Customers()
	if err != nil {
		t.Fatal(err)
	}
	if len(customers) != 0 {
		t.Errorf("customers must start empty, got %+v", customers)
	}
}

func TestSeedIsWrittenOnce(t *testing.T) {
	st := store.NewMemoryStore()
	svc := NewService(st)

	if _, err := svc.Programs(); err != nil {
		t.Fatal(err)
	}
	if err := svc.DeleteProgram("P-2"); err != nil {
		t.Fatal(err)
	}

	// A second service over the same store sees the edit, not the seed.
	programs, err := NewService(st).Programs()
	if err != nil {
		t.Fatal(err)
	}
	if len(programs) != 1 || programs[0].ID != "P-1" {
		t.Errorf("seed must not overwrite stored data, got %+v", programs)
	}
}

func TestSaveMintsIDAndPrepends(t *testing.T) {
	svc := NewService(store.NewMemoryStore(), WithClock(func() time.Time {
		return time.UnixMilli(1700000000000)
	}))

	saved, err := svc.SaveMentor(protocol.Mentor{Name: "Deepa Rao", Specialization: "Negotiation"})
	if err != nil {
		t.Fatal(err)
	}
	if saved.ID != "MENTOR-1700000000000" {
		t.Errorf("unexpected minted id %q", saved.ID)
	}

	mentors, _ := svc.Mentors()
	if len(mentors) != 2 || mentors[0].ID != saved.ID {
		t.Errorf("new rows go first, got %+v", mentors)
	}
}

func TestSaveWithIDReplaces(t *testing.T) {
	svc := NewService(store.NewMemoryStore())
	if _, err := svc.Programs(); err != nil {
		t.Fatal(err)
	}

	_, err := svc.SaveProgram(protocol.Program{ID: "P-1", Name: "Leadership Essentials", Duration: "5 Weeks", Fees: "₹ 18,000", Capacity: 100, EnrolledCount: 45, Active: true})
	if err != nil {
		t.Fatal(err)
	}

	programs, _ := svc.Programs()
	if len(programs) != 2 {
		t.Fatalf("replace must not grow the list, got %d", len(programs))
	}
	if programs[0].Duration != "5 Weeks" {
		t.Errorf("edit not applied: %+v", programs[0])
	}
}

func TestDeleteMissing(t *testing.T) {
	svc := NewService(store.NewMemoryStore())
	if err := svc.DeleteStaff("S-absent"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestCustomerLifecycle(t *testing.T) {
	svc := NewService(store.NewMemoryStore())

	c, err := svc.SaveCustomer(protocol.Customer{Name: "Asha", Email: "asha@co.com", Program: "Leadership Essentials", JoinDate: "2026-08-01", Status: "Active"})
	if err != nil {
		t.Fatal(err)
	}
	if c.ID == "" {
		t.Fatal("expected minted customer id")
	}

	if err := svc.DeleteCustomer(c.ID); err != nil {
		t.Fatal(err)
	}
	customers, _ := svc.Customers()
	if len(customers) != 0 {
		t.Errorf("expected empty list, got %+v", customers)
	}
}
