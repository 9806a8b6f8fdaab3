package invoices

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/gearbox-hq/gearbox/internal/parts"
	"github.com/gearbox-hq/gearbox/internal/tasks"
)

func TestRespondInvoiceErrorMapsBridgeErrors(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"invoice missing", ErrNotFound, http.StatusNotFound},
		{"part missing", fmt.Errorf("lock part 9: %w", parts.ErrNotFound), http.StatusUnprocessableEntity},
		{"bad part quantity", fmt.Errorf("consume part 9 stock: %w", parts.ErrInvalidQuantity), http.StatusUnprocessableEntity},
		{"task missing", fmt.Errorf("lock task 4: %w", tasks.ErrNotFound), http.StatusUnprocessableEntity},
		{"task not completed", tasks.ErrNotCompleted, http.StatusUnprocessableEntity},
		{"task already billed", tasks.ErrAlreadyBilled, http.StatusUnprocessableEntity},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			respondInvoiceError(rec, testLogger(), "assign part", tc.err)
			assert.Equal(t, tc.want, rec.Code)
		})
	}
}
