package domain

import (
	"math"
	"time"
)

type BookingStatus string

// StatusPending is the status every booking is created with.
const StatusPending BookingStatus = "pending"

const PaymentMethodStripe = "Stripe"

type Booking struct {
	ID                string        `json:"_id" bson:"_id"`
	UserID            string        `json:"user" bson:"user"`
	RoomID            string        `json:"room" bson:"room"`
	HotelID           string        `json:"hotel" bson:"hotel"`
	CheckInDate       time.Time     `json:"checkInDate" bson:"checkInDate"`
	CheckOutDate      time.Time     `json:"checkOutDate" bson:"checkOutDate"`
	Guests            int           `json:"guests" bson:"guests"`
	TotalPrice        float64       `json:"totalPrice" bson:"totalPrice"`
	Status            BookingStatus `json:"status" bson:"status"`
	IsPaid            bool          `json:"isPaid" bson:"isPaid"`
	PaymentMethod     *string       `json:"paymentMethod" bson:"paymentMethod"`
	CheckoutSessionID string        `json:"-" bson:"checkoutSessionId,omitempty"`
	CreatedAt         time.Time     `json:"createdAt" bson:"createdAt"`
	UpdatedAt         time.Time     `json:"updatedAt" bson:"updatedAt"`
}

// BookingView is a booking with its room and hotel populated for listings.
type BookingView struct {
	Booking `bson:",inline"`
	Room    *Room  `json:"roomData,omitempty" bson:"roomData,omitempty"`
	Hotel   *Hotel `json:"hotelData,omitempty" bson:"hotelData,omitempty"`
}

// BookingUpdate carries the fields a ledger update may touch; nil means unchanged.
type BookingUpdate struct {
	IsPaid            *bool
	PaymentMethod     *string
	CheckoutSessionID *string
}

type Dashboard struct {
	TotalBookings int           `json:"totalBookings"`
	TotalRevenue  float64       `json:"totalRevenue"`
	Bookings      []BookingView `json:"bookings"`
}

const millisPerDay = 24 * 60 * 60 * 1000

// Overlaps reports whether the stored range [aIn, aOut] conflicts with the requested
// range [bIn, bOut]. Both endpoints are inclusive, so a checkout on day X conflicts
// with a check-in on day X.
func Overlaps(aIn, aOut, bIn, bOut time.Time) bool {
	return !aIn.After(bOut) && !aOut.Before(bIn)
}

// Nights is the ceiling of the millisecond difference divided by one day.
// A stay of 25 hours counts as 2 nights.
func Nights(checkIn, checkOut time.Time) int {
	ms := checkOut.Sub(checkIn).Milliseconds()
	return int(math.Ceil(float64(ms) / millisPerDay))
}

// TotalPrice is the linear nightly price; no proration or discounts.
func TotalPrice(pricePerNight float64, nights int) float64 {
	return pricePerNight * float64(nights)
}
