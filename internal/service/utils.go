package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/ayo6706/wallet-ledger/internal/domain"
	"github.com/ayo6706/wallet-ledger/internal/repository"
)

// maxIDAttempts bounds the retry loop of allocateID.
const maxIDAttempts = 16

func requireExactlyOne(rows int64, operation string) error {
	if rows != 1 {
		return fmt.Errorf("%s affected %d rows", operation, rows)
	}
	return nil
}

// allocateID draws ids until one is unused according to exists.
func allocateID(ctx context.Context, newID func() string, exists func(context.Context, string) (bool, error)) (string, error) {
	for i := 0; i < maxIDAttempts; i++ {
		id := newID()
		taken, err := exists(ctx, id)
		if err != nil {
			return "", domain.Internal("check id", err)
		}
		if !taken {
			return id, nil
		}
	}
	return "", domain.Internal("allocate id", fmt.Errorf("no free id after %d attempts", maxIDAttempts))
}

// storeError translates repository failures into typed domain errors.
func storeError(err error, notFound string) error {
	switch {
	case err == nil:
		return nil
	case repository.IsNotFound(err):
		return domain.NotFound(notFound)
	case repository.IsUniqueViolation(err):
		return domain.Conflict("resource already exists")
	}
	var de *domain.Error
	if errors.As(err, &de) {
		return err
	}
	return domain.Internal("persistence failure", err)
}

func textParam(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}
