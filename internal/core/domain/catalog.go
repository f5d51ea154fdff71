package domain

import (
	"fmt"
	"sort"
	"strings"
)

func ref(name string, required bool) Field {
	return Field{Name: name, Kind: KindRef, Required: required, Rule: "uuid"}
}

func text(name string) Field {
	return Field{Name: name, Kind: KindString}
}

func timestamp(name string) Field {
	return Field{Name: name, Kind: KindTime}
}

var personName = []Field{
	{Name: "lastname", Kind: KindString, Required: true},
	{Name: "firstname", Kind: KindString, Required: true},
	text("middlename"),
	text("suffix"),
	{Name: "gender", Kind: KindString, Rule: "oneof=male female other"},
	timestamp("birthdate"),
}

var allOps = []Op{OpCreate, OpGet, OpSearch, OpSelect, OpUpdate}

var (
	Users = &Entity{
		Name:  "user",
		Table: "users",
		Fields: []Field{
			{Name: "username", Kind: KindString, Required: true, Rule: "min=3,max=64", Unique: true},
			{Name: "password", Kind: KindString, Required: true, Rule: "min=1,max=72", Secret: true},
		},
		Statuses:       StatusSet{StatusOK, StatusUnverified, StatusSuspended},
		DefaultStatus:  StatusUnverified,
		Visible:        StatusSet{StatusOK, StatusUnverified},
		SearchStatuses: StatusSet{StatusOK, StatusUnverified},
		SearchKeys:     []string{"username"},
	}

	UserInformations = &Entity{
		Name:           "user-information",
		Table:          "user_informations",
		Fields:         append(append([]Field{}, personName...), ref("userId", true)),
		Statuses:       StatusSet{StatusOK, StatusRetired},
		DefaultStatus:  StatusOK,
		Visible:        StatusSet{StatusOK},
		SearchStatuses: StatusSet{StatusOK},
		SearchKeys:     []string{"lastname", "firstname", "middlename"},
		DateRanges:     []string{"birthdate"},
	}

	Admins = &Entity{
		Name:  "admin",
		Table: "admins",
		Fields: []Field{
			// One grant per principal; revoking and re-granting flips its status.
			{Name: "userId", Kind: KindRef, Required: true, Rule: "uuid", Unique: true},
			{Name: "role", Kind: KindString, Required: true},
		},
		Statuses:       StatusSet{StatusOK, StatusRevoked},
		DefaultStatus:  StatusOK,
		Visible:        StatusSet{StatusOK},
		SearchStatuses: StatusSet{StatusOK},
		SearchKeys:     []string{"role", "userId"},
	}

	Assets = &Entity{
		Name:  "asset",
		Table: "assets",
		Fields: []Field{
			{Name: "name", Kind: KindString, Required: true},
			text("brand"),
			text("type"),
			text("description"),
		},
		Statuses:       StatusSet{StatusGood, StatusBroken, StatusRetired},
		DefaultStatus:  StatusGood,
		Visible:        StatusSet{StatusGood, StatusBroken},
		SearchStatuses: StatusSet{StatusGood, StatusBroken},
		SearchKeys:     []string{"name", "brand", "type"},
	}

	Borrowings = &Entity{
		Name:  "borrowing",
		Table: "borrowings",
		Fields: []Field{
			timestamp("datetimeBorrowed"),
			timestamp("datetimeReturned"),
			text("remarksBorrowed"),
			text("remarksReturned"),
			ref("assetId", true),
			ref("userId", true),
		},
		Statuses:       StatusSet{StatusPending, StatusBorrowed, StatusReturned},
		DefaultStatus:  StatusPending,
		Visible:        StatusSet{StatusPending, StatusBorrowed},
		SearchStatuses: StatusSet{StatusPending, StatusBorrowed},
		SearchKeys:     []string{"assetId", "userId"},
		DateRanges:     []string{"datetimeBorrowed", "datetimeReturned"},
	}

	Companies = &Entity{
		Name:  "company",
		Table: "companies",
		Fields: []Field{
			{Name: "name", Kind: KindString, Required: true},
			text("description"),
			text("address"),
			{Name: "email", Kind: KindString, Rule: "email"},
			text("type"),
			ref("userId", false),
		},
		Statuses:       StatusSet{StatusOK, StatusUnverified, StatusFlagged},
		DefaultStatus:  StatusUnverified,
		Visible:        StatusSet{StatusOK},
		SearchStatuses: StatusSet{StatusOK, StatusUnverified},
		SearchKeys:     []string{"name", "description", "address", "email", "type"},
	}

	Customers = &Entity{
		Name:  "customer",
		Table: "customers",
		Fields: []Field{
			text("address"),
			text("phone"),
			{Name: "email", Kind: KindString, Rule: "email"},
			ref("userId", false),
		},
		Statuses:       StatusSet{StatusOK, StatusFlagged, StatusRetired},
		DefaultStatus:  StatusOK,
		Visible:        StatusSet{StatusOK, StatusFlagged},
		SearchStatuses: StatusSet{StatusOK, StatusFlagged},
		SearchKeys:     []string{"email", "phone", "address"},
	}

	Events = &Entity{
		Name:  "event",
		Table: "events",
		Fields: []Field{
			timestamp("datetimeStarted"),
			timestamp("datetimeEnded"),
			text("type"),
			{Name: "name", Kind: KindString, Required: true},
			text("address"),
			{Name: "price", Kind: KindNumber, Rule: "gte=0"},
			{Name: "balance", Kind: KindNumber, Rule: "gte=0"},
			ref("customerId", false),
		},
		Statuses:       StatusSet{StatusActive, StatusCancelled, StatusCompleted, StatusUnpaid, StatusRetired},
		DefaultStatus:  StatusActive,
		Visible:        StatusSet{StatusActive, StatusCancelled, StatusCompleted, StatusUnpaid},
		SearchStatuses: StatusSet{StatusActive, StatusCancelled, StatusCompleted, StatusUnpaid},
		SearchKeys:     []string{"name", "type"},
		DateRanges:     []string{"datetimeStarted", "datetimeEnded"},
		Views: []View{
			{Name: "active", Statuses: StatusSet{StatusActive}},
			{Name: "search-active", Statuses: StatusSet{StatusActive}, Search: true},
		},
	}

	EventSupplies = &Entity{
		Name:  "event-supply",
		Table: "event_supplies",
		Fields: []Field{
			{Name: "quantity", Kind: KindInt, Required: true, Rule: "gte=0"},
			ref("eventId", true),
			ref("supplyId", true),
		},
		Statuses:       StatusSet{StatusOK, StatusRetired},
		DefaultStatus:  StatusOK,
		Visible:        StatusSet{StatusOK},
		SearchStatuses: StatusSet{StatusOK},
		SearchKeys:     []string{"eventId", "supplyId"},
		PrincipalOps:   allOps,
	}

	JobPosts = &Entity{
		Name:  "job-post",
		Table: "job_posts",
		Fields: []Field{
			{Name: "position", Kind: KindString, Required: true},
			text("description"),
			text("type"),
			{Name: "slot", Kind: KindInt, Rule: "gte=0"},
			ref("companyId", false),
		},
		Statuses:       StatusSet{StatusOK, StatusClosed, StatusRetired},
		DefaultStatus:  StatusOK,
		Visible:        StatusSet{StatusOK},
		SearchStatuses: StatusSet{StatusOK, StatusClosed},
		SearchKeys:     []string{"position"},
	}

	Orders = &Entity{
		Name:  "order",
		Table: "orders",
		Fields: []Field{
			timestamp("datetimeOrdered"),
			timestamp("datetimeExpected"),
			timestamp("datetimeArrived"),
			ref("supplierId", false),
		},
		Statuses:       StatusSet{StatusActive, StatusArrived, StatusCancelled, StatusRetired},
		DefaultStatus:  StatusActive,
		Visible:        StatusSet{StatusActive, StatusArrived, StatusCancelled},
		SearchStatuses: StatusSet{StatusActive, StatusArrived, StatusCancelled},
		SearchKeys:     []string{"supplierId"},
		DateRanges:     []string{"datetimeOrdered", "datetimeExpected", "datetimeArrived"},
		Views: []View{
			{Name: "get-active", Statuses: StatusSet{StatusActive}},
		},
		PrincipalOps: allOps,
	}

	OrderSupplies = &Entity{
		Name:  "order-supply",
		Table: "order_supplies",
		Fields: []Field{
			{Name: "quantity", Kind: KindInt, Required: true, Rule: "gte=0"},
			ref("orderId", true),
			ref("supplyId", true),
		},
		Statuses:       StatusSet{StatusOK, StatusRetired},
		DefaultStatus:  StatusOK,
		Visible:        StatusSet{StatusOK},
		SearchStatuses: StatusSet{StatusOK},
		SearchKeys:     []string{"orderId", "supplyId"},
	}

	Payments = &Entity{
		Name:  "payment",
		Table: "payments",
		Fields: []Field{
			timestamp("datetimePayment"),
			{Name: "amount", Kind: KindNumber, Required: true, Rule: "gte=0"},
			ref("eventId", false),
		},
		Statuses:       StatusSet{StatusOK, StatusRetired},
		DefaultStatus:  StatusOK,
		Visible:        StatusSet{StatusOK},
		SearchStatuses: StatusSet{StatusOK},
		SearchKeys:     []string{"eventId"},
		DateRanges:     []string{"datetimePayment"},
		PrincipalOps:   allOps,
	}

	Resumes = &Entity{
		Name:  "resume",
		Table: "resumes",
		Fields: []Field{
			{Name: "fileName", Kind: KindString, Required: true},
			{Name: "storageName", Kind: KindString, Required: true},
			ref("userId", false),
		},
		Statuses:       StatusSet{StatusOK, StatusRetired},
		DefaultStatus:  StatusOK,
		Visible:        StatusSet{StatusOK},
		SearchStatuses: StatusSet{StatusOK},
		SearchKeys:     []string{"fileName", "userId"},
	}

	Applications = &Entity{
		Name:  "application",
		Table: "applications",
		Fields: []Field{
			timestamp("datetimeApplied"),
			timestamp("datetimeAccepted"),
			timestamp("datetimeDeclined"),
			text("pitch"),
			ref("resumeId", false),
			ref("jobPostId", true),
			ref("userId", true),
		},
		Statuses:       StatusSet{StatusOK, StatusAccepted, StatusDeclined, StatusCancelled, StatusRetired},
		DefaultStatus:  StatusOK,
		Visible:        StatusSet{StatusOK},
		SearchStatuses: StatusSet{StatusOK, StatusAccepted, StatusDeclined, StatusCancelled},
		SearchKeys:     []string{"userId", "jobPostId"},
		DateRanges:     []string{"datetimeApplied", "datetimeAccepted", "datetimeDeclined"},
	}

	Students = &Entity{
		Name:  "student",
		Table: "students",
		Fields: []Field{
			text("studentNumber"),
			ref("userId", true),
		},
		Statuses:       StatusSet{StatusOK, StatusRetired},
		DefaultStatus:  StatusOK,
		Visible:        StatusSet{StatusOK},
		SearchStatuses: StatusSet{StatusOK},
		SearchKeys:     []string{"studentNumber", "userId"},
		PrincipalOps:   []Op{OpCreate},
	}

	StudentInformations = &Entity{
		Name:           "student-information",
		Table:          "student_informations",
		Fields:         append(append([]Field{}, personName...), ref("studentId", true)),
		Statuses:       StatusSet{StatusOK, StatusRetired},
		DefaultStatus:  StatusOK,
		Visible:        StatusSet{StatusOK},
		SearchStatuses: StatusSet{StatusOK},
		SearchKeys:     []string{"lastname", "firstname", "middlename"},
		DateRanges:     []string{"birthdate"},
		PrincipalOps:   []Op{OpCreate},
	}

	Supplies = &Entity{
		Name:  "supply",
		Table: "supplies",
		Fields: []Field{
			{Name: "name", Kind: KindString, Required: true},
			text("brand"),
			text("type"),
			{Name: "stock", Kind: KindInt, Rule: "gte=0"},
		},
		Statuses:       StatusSet{StatusOK, StatusRetired},
		DefaultStatus:  StatusOK,
		Visible:        StatusSet{StatusOK},
		SearchStatuses: StatusSet{StatusOK},
		SearchKeys:     []string{"name", "brand", "type"},
		PrincipalOps:   allOps,
	}

	Tasks = &Entity{
		Name:  "task",
		Table: "tasks",
		Fields: []Field{
			timestamp("datetimeDeadline"),
			{Name: "name", Kind: KindString, Required: true},
			text("description"),
		},
		Statuses:       StatusSet{StatusActive, StatusCompleted, StatusOnHold, StatusRetired},
		DefaultStatus:  StatusActive,
		Visible:        StatusSet{StatusActive, StatusCompleted, StatusOnHold},
		SearchStatuses: StatusSet{StatusActive, StatusCompleted, StatusOnHold},
		SearchKeys:     []string{"name"},
		DateRanges:     []string{"datetimeDeadline"},
	}

	TaskAssignees = &Entity{
		Name:  "task-assignee",
		Table: "task_assignees",
		Fields: []Field{
			ref("taskId", true),
			ref("userId", true),
		},
		Statuses:       StatusSet{StatusOK, StatusRetired},
		DefaultStatus:  StatusOK,
		Visible:        StatusSet{StatusOK},
		SearchStatuses: StatusSet{StatusOK},
		SearchKeys:     []string{"taskId", "userId"},
	}
)

// Catalog lists every entity exposed by the API.
var Catalog = []*Entity{
	Admins, Applications, Assets, Borrowings, Companies, Customers, Events,
	EventSupplies, JobPosts, Orders, OrderSupplies, Payments, Resumes,
	Students, StudentInformations, Supplies, Tasks, TaskAssignees, Users,
	UserInformations,
}

var byName = func() map[string]*Entity {
	m := make(map[string]*Entity, len(Catalog))
	for _, e := range Catalog {
		m[e.Name] = e
	}
	return m
}()

// Lookup returns the catalog entity with the given route name.
func Lookup(name string) (*Entity, error) {
	e, ok := byName[name]
	if !ok {
		return nil, ErrUnknownEntity
	}
	return e, nil
}

// Select resolves route names against the catalog, keeping their order and
// dropping repeats. No names selects the whole catalog.
func Select(names []string) ([]*Entity, error) {
	if len(names) == 0 {
		return Catalog, nil
	}

	out := make([]*Entity, 0, len(names))
	seen := make(map[string]bool, len(names))
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" || seen[name] {
			continue
		}
		e, err := Lookup(name)
		if err != nil {
			return nil, fmt.Errorf("%w %q, known entities: %s", err, name, strings.Join(Names(), ", "))
		}
		seen[name] = true
		out = append(out, e)
	}
	if len(out) == 0 {
		return Catalog, nil
	}
	return out, nil
}

// Names returns the sorted route names of all catalog entities.
func Names() []string {
	names := make([]string, 0, len(Catalog))
	for _, e := range Catalog {
		names = append(names, e.Name)
	}
	sort.Strings(names)
	return names
}
