package gocardless

import "github.com/ajitpratap0/nebula-gocardless/pkg/connector/core"

func field(name string, t core.FieldType, description string) core.Field {
	return core.Field{Name: name, Type: t, Description: description, Nullable: true}
}

var commonFields = []core.Field{
	{Name: "id", Type: core.FieldTypeString, Description: "Unique identifier", Primary: true},
	{Name: "created_at", Type: core.FieldTypeTimestamp, Description: "When the resource was created"},
}

// streamFields lists the documented top-level fields after id and created_at.
var streamFields = map[string][]core.Field{
	"payments": {
		field("amount", core.FieldTypeInt, "Amount in minor currency units"),
		field("amount_refunded", core.FieldTypeInt, "Amount refunded in minor currency units"),
		field("currency", core.FieldTypeString, "ISO 4217 currency code"),
		field("charge_date", core.FieldTypeDate, "Date the payment is collected"),
		field("description", core.FieldTypeString, ""),
		field("reference", core.FieldTypeString, "Reference shown on the bank statement"),
		field("status", core.FieldTypeString, ""),
		field("retry_if_possible", core.FieldTypeBool, ""),
		field("fx", core.FieldTypeJSON, "Foreign exchange details"),
		field("links", core.FieldTypeJSON, "Related resource ids"),
		field("metadata", core.FieldTypeJSON, ""),
	},
	"payment_events": {
		field("action", core.FieldTypeString, "What happened to the payment"),
		field("resource_type", core.FieldTypeString, ""),
		field("details", core.FieldTypeJSON, "Cause, origin and description"),
		field("links", core.FieldTypeJSON, "Related resource ids"),
		field("metadata", core.FieldTypeJSON, ""),
		field("payment", core.FieldTypeJSON, "The linked payment, if included"),
	},
	"customers": {
		field("email", core.FieldTypeString, ""),
		field("given_name", core.FieldTypeString, ""),
		field("family_name", core.FieldTypeString, ""),
		field("company_name", core.FieldTypeString, ""),
		field("country_code", core.FieldTypeString, ""),
		field("language", core.FieldTypeString, ""),
		field("metadata", core.FieldTypeJSON, ""),
	},
	"mandates": {
		field("reference", core.FieldTypeString, ""),
		field("scheme", core.FieldTypeString, "Direct debit scheme"),
		field("status", core.FieldTypeString, ""),
		field("next_possible_charge_date", core.FieldTypeDate, ""),
		field("links", core.FieldTypeJSON, "Related resource ids"),
		field("metadata", core.FieldTypeJSON, ""),
	},
	"refunds": {
		field("amount", core.FieldTypeInt, "Amount in minor currency units"),
		field("currency", core.FieldTypeString, ""),
		field("reference", core.FieldTypeString, ""),
		field("status", core.FieldTypeString, ""),
		field("links", core.FieldTypeJSON, "Related resource ids"),
		field("metadata", core.FieldTypeJSON, ""),
	},
	"payouts": {
		field("amount", core.FieldTypeInt, "Amount in minor currency units"),
		field("deducted_fees", core.FieldTypeInt, ""),
		field("currency", core.FieldTypeString, ""),
		field("arrival_date", core.FieldTypeDate, ""),
		field("payout_type", core.FieldTypeString, ""),
		field("reference", core.FieldTypeString, ""),
		field("status", core.FieldTypeString, ""),
		field("links", core.FieldTypeJSON, "Related resource ids"),
	},
	"subscriptions": {
		field("amount", core.FieldTypeInt, "Amount in minor currency units"),
		field("currency", core.FieldTypeString, ""),
		field("name", core.FieldTypeString, ""),
		field("status", core.FieldTypeString, ""),
		field("interval", core.FieldTypeInt, ""),
		field("interval_unit", core.FieldTypeString, "weekly, monthly or yearly"),
		field("day_of_month", core.FieldTypeInt, ""),
		field("start_date", core.FieldTypeDate, ""),
		field("end_date", core.FieldTypeDate, ""),
		field("links", core.FieldTypeJSON, "Related resource ids"),
		field("metadata", core.FieldTypeJSON, ""),
	},
}

func schemaFor(r resource) *core.Schema {
	fields := append(append([]core.Field(nil), commonFields...), streamFields[r.name]...)
	return &core.Schema{
		Name:        r.name,
		Description: r.description,
		Fields:      fields,
		Version:     1,
	}
}
