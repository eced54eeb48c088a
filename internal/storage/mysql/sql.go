package mysql

// -----------------------------------------------------------------------------
// USERS
// -----------------------------------------------------------------------------

// Role and recent cities are only set on insert; profile syncs never reset them.
const upsertUserSQL = `
INSERT INTO users
  (id, username, email, image, role, recent_cities, created_at, updated_at)
VALUES
  (?, ?, ?, ?, ?, ?, ?, ?)
ON DUPLICATE KEY UPDATE
  username   = VALUES(username),
  email      = VALUES(email),
  image      = VALUES(image),
  updated_at = VALUES(updated_at)
`

const getUserSQL = `
SELECT id, username, email, image, role, recent_cities, created_at, updated_at
FROM users WHERE id = ?
`

const deleteUserSQL = `DELETE FROM users WHERE id = ?`

const setRoleSQL = `UPDATE users SET role = ?, updated_at = ? WHERE id = ?`

const setRecentCitiesSQL = `UPDATE users SET recent_cities = ?, updated_at = ? WHERE id = ?`

const userExistsSQL = `SELECT 1 FROM users WHERE id = ?`

// -----------------------------------------------------------------------------
// CATALOG
// -----------------------------------------------------------------------------

const insertHotelSQL = `
INSERT INTO hotels (id, name, address, contact, city, owner, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
`

const hotelCols = `id, name, address, contact, city, owner, created_at`

const getHotelSQL = `SELECT ` + hotelCols + ` FROM hotels WHERE id = ?`

const getHotelByOwnerSQL = `SELECT ` + hotelCols + ` FROM hotels WHERE owner = ?`

const insertRoomSQL = `
INSERT INTO rooms (id, hotel_id, room_type, price_per_night, amenities, images, is_available, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
`

const getRoomSQL = `
SELECT id, hotel_id, room_type, price_per_night, amenities, images, is_available, created_at
FROM rooms WHERE id = ?
`

// Shared SELECT for a room joined with its hotel; scanned by scanRoomWithHotel.
const roomWithHotelSelect = `
SELECT r.id, r.hotel_id, r.room_type, r.price_per_night, r.amenities, r.images, r.is_available, r.created_at,
       h.id, h.name, h.address, h.contact, h.city, h.owner, h.created_at
FROM rooms r
JOIN hotels h ON h.id = r.hotel_id
`

const getRoomWithHotelSQL = roomWithHotelSelect + `WHERE r.id = ?`

const listAvailableRoomsSQL = roomWithHotelSelect + `WHERE r.is_available = TRUE ORDER BY r.created_at DESC, r.id`

const listRoomsByHotelSQL = roomWithHotelSelect + `WHERE r.hotel_id = ? ORDER BY r.created_at DESC, r.id`

const setRoomAvailabilitySQL = `UPDATE rooms SET is_available = ? WHERE id = ?`

const roomExistsSQL = `SELECT 1 FROM rooms WHERE id = ?`

// -----------------------------------------------------------------------------
// BOOKINGS
// -----------------------------------------------------------------------------

const bookingCols = `b.id, b.user_id, b.room_id, b.hotel_id, b.check_in, b.check_out, b.guests, b.total_price,
       b.status, b.is_paid, b.payment_method, b.checkout_session_id, b.created_at, b.updated_at`

// Endpoint-inclusive overlap: stored.check_in <= requested.check_out AND stored.check_out >= requested.check_in.
const findOverlappingSQL = `
SELECT ` + bookingCols + `
FROM bookings b
WHERE b.room_id = ? AND b.check_in <= ? AND b.check_out >= ?
`

const countOverlappingSQL = `
SELECT COUNT(*) FROM bookings
WHERE room_id = ? AND check_in <= ? AND check_out >= ?
`

// Serializes reservations of one room for the rest of the transaction.
const lockRoomSQL = `SELECT id FROM rooms WHERE id = ? FOR UPDATE`

const insertBookingSQL = `
INSERT INTO bookings
  (id, user_id, room_id, hotel_id, check_in, check_out, guests, total_price,
   status, is_paid, payment_method, checkout_session_id, created_at, updated_at)
VALUES
  (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`

const getBookingSQL = `SELECT ` + bookingCols + ` FROM bookings b WHERE b.id = ?`

// NULL arguments leave the column unchanged.
const updateBookingSQL = `
UPDATE bookings SET
  is_paid             = COALESCE(?, is_paid),
  payment_method      = COALESCE(?, payment_method),
  checkout_session_id = COALESCE(?, checkout_session_id),
  updated_at          = ?
WHERE id = ?
`

const bookingViewSelect = `
SELECT ` + bookingCols + `,
       r.id, r.hotel_id, r.room_type, r.price_per_night, r.amenities, r.images, r.is_available, r.created_at,
       h.id, h.name, h.address, h.contact, h.city, h.owner, h.created_at
FROM bookings b
JOIN rooms r  ON r.id = b.room_id
JOIN hotels h ON h.id = b.hotel_id
`

const listBookingsByUserSQL = bookingViewSelect + `WHERE b.user_id = ? ORDER BY b.created_at DESC, b.id`

const listBookingsByHotelSQL = bookingViewSelect + `WHERE b.hotel_id = ? ORDER BY b.created_at DESC, b.id`

const listUnpaidSQL = `
SELECT ` + bookingCols + `
FROM bookings b
WHERE b.is_paid = FALSE AND b.checkout_session_id IS NOT NULL
ORDER BY b.created_at
LIMIT ?
`
