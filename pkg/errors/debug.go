package errors

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/stripe/stripe-go/v78"
)

// ErrorDump flattens an error chain into loggable fields. Driver and gateway details are
// pulled out so failed stock updates and refund calls can be traced without a debugger.
type ErrorDump struct {
	TopMessage string
	Code       Code
	Chain      []string

	PGCode       string
	PGConstraint string
	PGTable      string
	PGDetail     string

	StripeType      string
	StripeCode      string
	StripeRequestID string
	StripeStatus    int
}

func Dump(err error) ErrorDump {
	if err == nil {
		return ErrorDump{}
	}
	d := ErrorDump{TopMessage: err.Error()}
	if te := As(err); te != nil {
		d.Code = te.Code()
	}
	for e := err; e != nil; e = errors.Unwrap(e) {
		d.Chain = append(d.Chain, fmt.Sprintf("%T", e))
	}

	var pgxErr *pgconn.PgError
	var pqErr *pq.Error
	switch {
	case errors.As(err, &pgxErr):
		d.PGCode, d.PGConstraint, d.PGTable, d.PGDetail = pgxErr.Code, pgxErr.ConstraintName, pgxErr.TableName, pgxErr.Detail
	case errors.As(err, &pqErr):
		d.PGCode, d.PGConstraint, d.PGTable, d.PGDetail = string(pqErr.Code), pqErr.Constraint, pqErr.Table, pqErr.Detail
	}

	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		d.StripeType = string(stripeErr.Type)
		d.StripeCode = string(stripeErr.Code)
		d.StripeRequestID = stripeErr.RequestID
		d.StripeStatus = stripeErr.HTTPStatusCode
	}
	return d
}

// Fields returns the non-empty parts of the dump keyed for structured logs.
func (d ErrorDump) Fields() map[string]any {
	fields := map[string]any{"error": d.TopMessage}
	set := func(key string, value any, present bool) {
		if present {
			fields[key] = value
		}
	}
	set("error_code", d.Code, d.Code != "")
	set("error_chain", d.Chain, len(d.Chain) > 1)
	set("pg_code", d.PGCode, d.PGCode != "")
	set("pg_constraint", d.PGConstraint, d.PGConstraint != "")
	set("pg_table", d.PGTable, d.PGTable != "")
	set("pg_detail", d.PGDetail, d.PGDetail != "")
	set("stripe_type", d.StripeType, d.StripeType != "")
	set("stripe_code", d.StripeCode, d.StripeCode != "")
	set("stripe_request_id", d.StripeRequestID, d.StripeRequestID != "")
	set("stripe_status", d.StripeStatus, d.StripeStatus != 0)
	return fields
}
