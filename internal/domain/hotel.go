package domain

import "time"

type Role string

const (
	RoleUser       Role = "user"
	RoleHotelOwner Role = "hotelOwner"
)

// MaxRecentCities is how many searched cities a user keeps; the oldest is dropped first.
const MaxRecentCities = 3

type User struct {
	ID                   string    `json:"_id" bson:"_id"`
	Username             string    `json:"username" bson:"username"`
	Email                string    `json:"email" bson:"email"`
	Image                string    `json:"image" bson:"image"`
	Role                 Role      `json:"role" bson:"role"`
	RecentSearchedCities []string  `json:"recentSearchedCities" bson:"recentSearchedCities"`
	CreatedAt            time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt            time.Time `json:"updatedAt" bson:"updatedAt"`
}

type Hotel struct {
	ID        string    `json:"_id" bson:"_id"`
	Name      string    `json:"name" bson:"name"`
	Address   string    `json:"address" bson:"address"`
	Contact   string    `json:"contact" bson:"contact"`
	City      string    `json:"city" bson:"city"`
	Owner     string    `json:"owner" bson:"owner"`
	CreatedAt time.Time `json:"createdAt" bson:"createdAt"`
}

type Room struct {
	ID            string    `json:"_id" bson:"_id"`
	HotelID       string    `json:"hotel" bson:"hotel"`
	RoomType      string    `json:"roomType" bson:"roomType"`
	PricePerNight float64   `json:"pricePerNight" bson:"pricePerNight"`
	Amenities     []string  `json:"amenities" bson:"amenities"`
	Images        []string  `json:"images" bson:"images"`
	IsAvailable   bool      `json:"isAvailable" bson:"isAvailable"`
	CreatedAt     time.Time `json:"createdAt" bson:"createdAt"`
}

// RoomWithHotel is a room joined with the hotel that owns it.
type RoomWithHotel struct {
	Room  `bson:",inline"`
	Hotel Hotel `json:"hotelData" bson:"hotelData"`
}

// RoomFilter narrows the public room listing. Empty fields are ignored.
type RoomFilter struct {
	City     string
	RoomType string
	HotelID  string
}
