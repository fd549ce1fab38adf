package domain

import "context"

// AttractionStore provides durable CRUD for the attraction collection.
// Add assigns the next integer id before persisting.
type AttractionStore interface {
	AddAttraction(ctx context.Context, a Attraction) (Attraction, error)
	UpdateAttraction(ctx context.Context, a Attraction) (Attraction, error)
	DeleteAttraction(ctx context.Context, id int) error
	FindAttraction(id int) (Attraction, bool)
	ListAttractions() []Attraction
}

// GuideStore provides durable CRUD for the guide collection, keyed by email.
type GuideStore interface {
	AddGuide(ctx context.Context, g Guide) (Guide, error)
	UpdateGuide(ctx context.Context, g Guide) (Guide, error)
	DeleteGuide(ctx context.Context, email string) error
	FindGuide(email string) (Guide, bool)
	ListGuides() []Guide
}

// UserStore provides durable CRUD for the user collection, keyed by email.
// DeleteUser only removes tourist accounts; admins are never deleted this way.
type UserStore interface {
	AddUser(ctx context.Context, u User) (User, error)
	UpdateUser(ctx context.Context, u User) (User, error)
	DeleteUser(ctx context.Context, email string) error
	FindUser(email string) (User, bool)
	ListUsers() []User
}

// TrekStore provides durable CRUD for the trek collection.
type TrekStore interface {
	AddTrek(ctx context.Context, t Trek) (Trek, error)
	UpdateTrek(ctx context.Context, t Trek) (Trek, error)
	DeleteTrek(ctx context.Context, id int) error
	FindTrek(id int) (Trek, bool)
	ListTreks() []Trek
}

// BookingStore provides durable CRUD for the booking collection. The public
// booking id is assigned by the caller; the store only assigns the integer id.
type BookingStore interface {
	AddBooking(ctx context.Context, b Booking) (Booking, error)
	DeleteBooking(ctx context.Context, id int) error
	FindBooking(id int) (Booking, bool)
	ListBookings() []Booking
}

// EmergencyStore provides durable CRUD for the emergency collection.
type EmergencyStore interface {
	AddEmergency(ctx context.Context, e Emergency) (Emergency, error)
	UpdateEmergency(ctx context.Context, e Emergency) (Emergency, error)
	DeleteEmergency(ctx context.Context, id int) error
	FindEmergency(id int) (Emergency, bool)
	ListEmergencies() []Emergency
}

// PersistentStore is the full set of collection stores backing the core.
// Every operation is a load-mutate-save cycle against the backing medium;
// there is no cross-collection atomicity. Implementations must serialize
// writers per collection. A PersistentStore also satisfies RuleView.
type PersistentStore interface {
	AttractionStore
	GuideStore
	UserStore
	TrekStore
	BookingStore
	EmergencyStore
}
