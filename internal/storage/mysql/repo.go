package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	mysqldrv "github.com/go-sql-driver/mysql"

	"hotel_booking/internal/domain"
)

const errDupEntry = 1062

func isDuplicate(err error) bool {
	var me *mysqldrv.MySQLError
	return errors.As(err, &me) && me.Number == errDupEntry
}

func valStr(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}

func valBool(p *bool) any {
	if p == nil {
		return nil
	}
	return *p
}

func jsonList(v []string) string {
	if v == nil {
		v = []string{}
	}
	b, _ := json.Marshal(v)
	return string(b)
}

func parseList(b []byte) []string {
	out := []string{}
	if len(b) > 0 {
		_ = json.Unmarshal(b, &out)
	}
	return out
}

type scanner interface {
	Scan(dest ...any) error
}

// Store groups the three repositories over one connection pool.
type Store struct {
	Users   *UserRepo
	Catalog *CatalogRepo
	Ledger  *LedgerRepo
}

func New(db *sql.DB) *Store {
	now := func() time.Time { return time.Now().UTC() }
	return &Store{
		Users:   &UserRepo{db: db, now: now},
		Catalog: &CatalogRepo{db: db},
		Ledger:  &LedgerRepo{db: db, now: now},
	}
}

// ---- users ----

type UserRepo struct {
	db  *sql.DB
	now func() time.Time
}

var _ domain.UserRepository = (*UserRepo)(nil)

func (r *UserRepo) Get(ctx context.Context, id string) (domain.User, error) {
	var u domain.User
	var role string
	var cities []byte
	err := r.db.QueryRowContext(ctx, getUserSQL, id).Scan(
		&u.ID, &u.Username, &u.Email, &u.Image, &role, &cities, &u.CreatedAt, &u.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.User{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.User{}, err
	}
	u.Role = domain.Role(role)
	u.RecentSearchedCities = parseList(cities)
	return u, nil
}

func (r *UserRepo) Upsert(ctx context.Context, u domain.User) error {
	now := r.now()
	created := u.CreatedAt
	if created.IsZero() {
		created = now
	}
	role := u.Role
	if role == "" {
		role = domain.RoleUser
	}
	_, err := r.db.ExecContext(ctx, upsertUserSQL,
		u.ID, u.Username, u.Email, u.Image, string(role), jsonList(u.RecentSearchedCities), created, now,
	)
	return err
}

func (r *UserRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, deleteUserSQL, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *UserRepo) SetRole(ctx context.Context, id string, role domain.Role) error {
	return r.update(ctx, id, setRoleSQL, string(role))
}

func (r *UserRepo) SetRecentCities(ctx context.Context, id string, cities []string) error {
	return r.update(ctx, id, setRecentCitiesSQL, jsonList(cities))
}

// update runs a single-column UPDATE; missing rows are detected with an existence check
// since MySQL reports zero affected rows for unchanged values.
func (r *UserRepo) update(ctx context.Context, id, stmt string, v any) error {
	if _, err := r.db.ExecContext(ctx, stmt, v, r.now(), id); err != nil {
		return err
	}
	return exists(ctx, r.db, userExistsSQL, id)
}

func exists(ctx context.Context, db *sql.DB, stmt, id string) error {
	var one int
	err := db.QueryRowContext(ctx, stmt, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrNotFound
	}
	return err
}

// ---- catalog ----

type CatalogRepo struct{ db *sql.DB }

var _ domain.CatalogRepository = (*CatalogRepo)(nil)

func scanHotel(s scanner) (domain.Hotel, error) {
	var h domain.Hotel
	err := s.Scan(&h.ID, &h.Name, &h.Address, &h.Contact, &h.City, &h.Owner, &h.CreatedAt)
	return h, err
}

func roomDest(r *domain.Room, amen, imgs *[]byte) []any {
	return []any{&r.ID, &r.HotelID, &r.RoomType, &r.PricePerNight, amen, imgs, &r.IsAvailable, &r.CreatedAt}
}

func hotelDest(h *domain.Hotel) []any {
	return []any{&h.ID, &h.Name, &h.Address, &h.Contact, &h.City, &h.Owner, &h.CreatedAt}
}

func scanRoomWithHotel(s scanner) (domain.RoomWithHotel, error) {
	var rw domain.RoomWithHotel
	var amen, imgs []byte
	dest := append(roomDest(&rw.Room, &amen, &imgs), hotelDest(&rw.Hotel)...)
	if err := s.Scan(dest...); err != nil {
		return domain.RoomWithHotel{}, err
	}
	rw.Amenities, rw.Images = parseList(amen), parseList(imgs)
	return rw, nil
}

func (r *CatalogRepo) GetRoom(ctx context.Context, id string) (domain.Room, error) {
	var room domain.Room
	var amen, imgs []byte
	err := r.db.QueryRowContext(ctx, getRoomSQL, id).Scan(roomDest(&room, &amen, &imgs)...)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Room{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Room{}, err
	}
	room.Amenities, room.Images = parseList(amen), parseList(imgs)
	return room, nil
}

func (r *CatalogRepo) GetRoomWithHotel(ctx context.Context, id string) (domain.RoomWithHotel, error) {
	rw, err := scanRoomWithHotel(r.db.QueryRowContext(ctx, getRoomWithHotelSQL, id))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.RoomWithHotel{}, domain.ErrNotFound
	}
	return rw, err
}

func (r *CatalogRepo) GetHotel(ctx context.Context, id string) (domain.Hotel, error) {
	h, err := scanHotel(r.db.QueryRowContext(ctx, getHotelSQL, id))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Hotel{}, domain.ErrNotFound
	}
	return h, err
}

func (r *CatalogRepo) GetHotelByOwner(ctx context.Context, owner string) (domain.Hotel, error) {
	h, err := scanHotel(r.db.QueryRowContext(ctx, getHotelByOwnerSQL, owner))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Hotel{}, domain.ErrNotFound
	}
	return h, err
}

func (r *CatalogRepo) listRooms(ctx context.Context, stmt string, args ...any) ([]domain.RoomWithHotel, error) {
	rows, err := r.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.RoomWithHotel{}
	for rows.Next() {
		rw, err := scanRoomWithHotel(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rw)
	}
	return out, rows.Err()
}

func (r *CatalogRepo) ListAvailableRooms(ctx context.Context) ([]domain.RoomWithHotel, error) {
	return r.listRooms(ctx, listAvailableRoomsSQL)
}

func (r *CatalogRepo) ListRoomsByHotel(ctx context.Context, hotelID string) ([]domain.RoomWithHotel, error) {
	return r.listRooms(ctx, listRoomsByHotelSQL, hotelID)
}

func (r *CatalogRepo) CreateHotel(ctx context.Context, h domain.Hotel) error {
	_, err := r.db.ExecContext(ctx, insertHotelSQL, h.ID, h.Name, h.Address, h.Contact, h.City, h.Owner, h.CreatedAt)
	if isDuplicate(err) {
		return fmt.Errorf("hotel of owner %s: %w", h.Owner, domain.ErrConflict)
	}
	return err
}

func (r *CatalogRepo) CreateRoom(ctx context.Context, room domain.Room) error {
	_, err := r.db.ExecContext(ctx, insertRoomSQL,
		room.ID, room.HotelID, room.RoomType, room.PricePerNight,
		jsonList(room.Amenities), jsonList(room.Images), room.IsAvailable, room.CreatedAt,
	)
	return err
}

func (r *CatalogRepo) SetRoomAvailability(ctx context.Context, id string, available bool) error {
	if _, err := r.db.ExecContext(ctx, setRoomAvailabilitySQL, available, id); err != nil {
		return err
	}
	return exists(ctx, r.db, roomExistsSQL, id)
}

// ---- ledger ----

type LedgerRepo struct {
	db  *sql.DB
	now func() time.Time
}

var _ domain.BookingRepository = (*LedgerRepo)(nil)

func bookingDest(b *domain.Booking, status *string, method, session *sql.NullString) []any {
	return []any{
		&b.ID, &b.UserID, &b.RoomID, &b.HotelID, &b.CheckInDate, &b.CheckOutDate, &b.Guests, &b.TotalPrice,
		status, &b.IsPaid, method, session, &b.CreatedAt, &b.UpdatedAt,
	}
}

func finishBooking(b *domain.Booking, status string, method, session sql.NullString) {
	b.Status = domain.BookingStatus(status)
	if method.Valid {
		m := method.String
		b.PaymentMethod = &m
	}
	b.CheckoutSessionID = session.String
}

func scanBooking(s scanner) (domain.Booking, error) {
	var b domain.Booking
	var status string
	var method, session sql.NullString
	if err := s.Scan(bookingDest(&b, &status, &method, &session)...); err != nil {
		return domain.Booking{}, err
	}
	finishBooking(&b, status, method, session)
	return b, nil
}

func scanBookingView(s scanner) (domain.BookingView, error) {
	var v domain.BookingView
	var status string
	var method, session sql.NullString
	var room domain.Room
	var hotel domain.Hotel
	var amen, imgs []byte

	dest := bookingDest(&v.Booking, &status, &method, &session)
	dest = append(dest, roomDest(&room, &amen, &imgs)...)
	dest = append(dest, hotelDest(&hotel)...)
	if err := s.Scan(dest...); err != nil {
		return domain.BookingView{}, err
	}
	finishBooking(&v.Booking, status, method, session)
	room.Amenities, room.Images = parseList(amen), parseList(imgs)
	v.Room, v.Hotel = &room, &hotel
	return v, nil
}

func (r *LedgerRepo) FindOverlapping(ctx context.Context, roomID string, checkIn, checkOut time.Time) ([]domain.Booking, error) {
	rows, err := r.db.QueryContext(ctx, findOverlappingSQL, roomID, checkOut.UTC(), checkIn.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// Reserve locks the room row, re-checks the range and inserts, all in one transaction.
func (r *LedgerRepo) Reserve(ctx context.Context, b domain.Booking) (domain.Booking, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Booking{}, err
	}
	defer func() { _ = tx.Rollback() }()

	var locked string
	if err := tx.QueryRowContext(ctx, lockRoomSQL, b.RoomID).Scan(&locked); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Booking{}, fmt.Errorf("room %s: %w", b.RoomID, domain.ErrNotFound)
		}
		return domain.Booking{}, err
	}

	var n int
	if err := tx.QueryRowContext(ctx, countOverlappingSQL, b.RoomID, b.CheckOutDate.UTC(), b.CheckInDate.UTC()).Scan(&n); err != nil {
		return domain.Booking{}, err
	}
	if n > 0 {
		return domain.Booking{}, domain.ErrUnavailable
	}

	var session any
	if b.CheckoutSessionID != "" {
		session = b.CheckoutSessionID
	}
	if _, err := tx.ExecContext(ctx, insertBookingSQL,
		b.ID, b.UserID, b.RoomID, b.HotelID, b.CheckInDate.UTC(), b.CheckOutDate.UTC(), b.Guests, b.TotalPrice,
		string(b.Status), b.IsPaid, valStr(b.PaymentMethod), session, b.CreatedAt.UTC(), b.UpdatedAt.UTC(),
	); err != nil {
		return domain.Booking{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Booking{}, err
	}
	return b, nil
}

func (r *LedgerRepo) Get(ctx context.Context, id string) (domain.Booking, error) {
	b, err := scanBooking(r.db.QueryRowContext(ctx, getBookingSQL, id))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Booking{}, domain.ErrNotFound
	}
	return b, err
}

func (r *LedgerRepo) listViews(ctx context.Context, stmt, arg string) ([]domain.BookingView, error) {
	rows, err := r.db.QueryContext(ctx, stmt, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.BookingView{}
	for rows.Next() {
		v, err := scanBookingView(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (r *LedgerRepo) ListByUser(ctx context.Context, userID string) ([]domain.BookingView, error) {
	return r.listViews(ctx, listBookingsByUserSQL, userID)
}

func (r *LedgerRepo) ListByHotel(ctx context.Context, hotelID string) ([]domain.BookingView, error) {
	return r.listViews(ctx, listBookingsByHotelSQL, hotelID)
}

func (r *LedgerRepo) ListUnpaid(ctx context.Context, limit int) ([]domain.Booking, error) {
	rows, err := r.db.QueryContext(ctx, listUnpaidSQL, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (r *LedgerRepo) UpdateByID(ctx context.Context, id string, u domain.BookingUpdate) (domain.Booking, error) {
	if _, err := r.db.ExecContext(ctx, updateBookingSQL,
		valBool(u.IsPaid), valStr(u.PaymentMethod), valStr(u.CheckoutSessionID), r.now(), id,
	); err != nil {
		return domain.Booking{}, err
	}
	return r.Get(ctx, id)
}
