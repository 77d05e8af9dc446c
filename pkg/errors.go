// Package pkg, projede paylaşılan utility'leri barındırır.
// Bu dosya domain-level error tanımlarını içerir.
//
// Error karşılaştırması string yerine referans ile yapılır:
//
//	if errors.Is(err, pkg.ErrNotFound) { ... }
package pkg

import "errors"

// Domain-level error'lar.
// Handler katmanı bu error'ları HTTP status code'larına map'ler.
// storeclient ise HTTP status'u tekrar bu error'lara çevirir —
// böylece client tarafı da aynı errors.Is kontrollerini yapabilir.
var (
	ErrNotFound        = errors.New("not found")
	ErrUnauthorized    = errors.New("unauthorized")
	ErrForbidden       = errors.New("forbidden")
	ErrAlreadyExists   = errors.New("already exists")
	ErrBadRequest      = errors.New("bad request")
	ErrTooManyRequests = errors.New("too many requests")
	ErrInternal        = errors.New("internal error")
)

// Client core (chat, reactions, comments) error'ları.
//
// Store'dan dönen hatalar bunlarla sarılır; çağıran taraf sadece
// optimistic state'i geri alıp almayacağına bakar:
//
//	if errors.Is(err, pkg.ErrPersistence) { ... }
var (
	ErrValidation    = errors.New("validation failed")
	ErrPersistence   = errors.New("persistence failed")
	ErrAuthorization = errors.New("not authorized")
)
