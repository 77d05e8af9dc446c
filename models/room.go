package models

import (
	"fmt"
	"strconv"
	"strings"
)

// RoomScope, chat mesajlarının mantıksal bölümleme anahtarıdır.
//
// İki biçimi vardır:
//   - "global"        → site geneli sohbet odası
//   - "fixture:<id>"  → tek bir maçın (fixture) sohbet odası
//
// DB'de nullable fixture_id kolonu olarak saklanır (NULL = global).
// Fetch, insert ve subscribe işlemlerinin hepsi bu scope ile parametrelenir —
// bir scope'un mesajı asla başka bir scope'a sızmamalıdır.
type RoomScope string

// GlobalRoom, fixture'a bağlı olmayan genel oda.
const GlobalRoom RoomScope = "global"

const fixtureRoomPrefix = "fixture:"

// FixtureRoom, verilen fixture ID'si için oda scope'u oluşturur.
func FixtureRoom(fixtureID int64) RoomScope {
	return RoomScope(fixtureRoomPrefix + strconv.FormatInt(fixtureID, 10))
}

// ParseRoomScope, dışarıdan gelen (URL path, WS payload) scope string'ini doğrular.
// Boş string global oda kabul edilir.
func ParseRoomScope(raw string) (RoomScope, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == string(GlobalRoom) {
		return GlobalRoom, nil
	}

	idPart, ok := strings.CutPrefix(raw, fixtureRoomPrefix)
	if !ok {
		return "", fmt.Errorf("invalid room scope %q", raw)
	}

	id, err := strconv.ParseInt(idPart, 10, 64)
	if err != nil || id <= 0 {
		return "", fmt.Errorf("invalid fixture id in room scope %q", raw)
	}

	return FixtureRoom(id), nil
}

// FixtureID, scope bir fixture odasıysa ID'sini döner.
// Global oda için (0, false) döner.
func (r RoomScope) FixtureID() (int64, bool) {
	idPart, ok := strings.CutPrefix(string(r), fixtureRoomPrefix)
	if !ok {
		return 0, false
	}
	id, err := strconv.ParseInt(idPart, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// FixtureIDPtr, repository katmanı için nullable fixture_id değeri.
func (r RoomScope) FixtureIDPtr() *int64 {
	id, ok := r.FixtureID()
	if !ok {
		return nil
	}
	return &id
}

// RoomFromFixtureID, DB'den okunan nullable fixture_id'yi scope'a çevirir.
func RoomFromFixtureID(fixtureID *int64) RoomScope {
	if fixtureID == nil {
		return GlobalRoom
	}
	return FixtureRoom(*fixtureID)
}

func (r RoomScope) String() string {
	return string(r)
}
