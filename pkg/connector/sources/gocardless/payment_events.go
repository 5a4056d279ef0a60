package gocardless

import (
	"github.com/ajitpratap0/nebula-gocardless/pkg/connector/httpstream"
)

// paymentEvents lists payment events with include=payment and attaches each
// event's linked payment as the "payment" field.
type paymentEvents struct {
	*stream
}

func (s *paymentEvents) ParseResponse(page httpstream.Page) ([]map[string]interface{}, error) {
	events, err := objects(page, s.dataKey)
	if err != nil {
		return nil, err
	}

	var linked []map[string]interface{}
	if l, ok := page["linked"].(map[string]interface{}); ok {
		if linked, err = objects(l, "payments"); err != nil {
			return nil, err
		}
	}

	byID := make(map[string]map[string]interface{}, len(linked))
	for _, p := range linked {
		if id, ok := p["id"].(string); ok {
			byID[id] = p
		}
	}

	for _, event := range events {
		var payment interface{}
		if links, ok := event["links"].(map[string]interface{}); ok {
			if id, ok := links["payment"].(string); ok {
				if p, found := byID[id]; found {
					payment = p
				}
			}
		}
		event["payment"] = payment
	}
	return events, nil
}
