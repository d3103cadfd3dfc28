package intent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIntentValidate(t *testing.T) {
	tests := []struct {
		name    string
		intent  Intent
		wantErr bool
	}{
		{
			name: "valid send",
			intent: Intent{
				Kind:          KindSend,
				Network:       "polygon",
				ToAddress:     "0xabc0000000000000000000000000000000000001",
				AmountDecimal: "10",
				TokenSymbol:   "USDC",
			},
		},
		{
			name: "missing amount",
			intent: Intent{
				Kind:        KindSend,
				Network:     "ethereum",
				ToAddress:   "0xabc0000000000000000000000000000000000001",
				TokenSymbol: "ETH",
			},
			wantErr: true,
		},
		{
			name: "unknown kind",
			intent: Intent{
				Kind:          Kind("teleport"),
				Network:       "ethereum",
				AmountDecimal: "1",
				TokenSymbol:   "ETH",
			},
			wantErr: true,
		},
		{
			name: "missing network",
			intent: Intent{
				Kind:          KindBuy,
				AmountDecimal: "100",
				TokenSymbol:   "ETH",
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.intent.Validate()
			if tt.wantErr {
				require.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
