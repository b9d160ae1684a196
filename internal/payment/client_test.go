package payment

import (
	"testing"

	"github.com/austrian-business-infrastructure/fo/internal/tenant"
	"github.com/stretchr/testify/assert"
)

func TestMapStatus(t *testing.T) {
	cases := []struct {
		asaas string
		want  tenant.SubscriptionStatus
	}{
		{"ACTIVE", tenant.SubscriptionActive},
		{"CONFIRMED", tenant.SubscriptionActive},
		{"OVERDUE", tenant.SubscriptionOverdue},
		{"CANCELED", tenant.SubscriptionCanceled},
		{"EXPIRED", tenant.SubscriptionCanceled},
		{"PENDING", tenant.SubscriptionPending},
		{"SOMETHING_UNKNOWN", tenant.SubscriptionPending},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, MapStatus(c.asaas), "mapping %s", c.asaas)
	}
}
