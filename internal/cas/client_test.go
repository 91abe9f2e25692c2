package cas

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

const successBody = `<cas:serviceResponse xmlns:cas="http://www.yale.edu/tp/cas">
  <cas:authenticationSuccess>
    <cas:user>HC8499</cas:user>
  </cas:authenticationSuccess>
</cas:serviceResponse>`

const failureBody = `<cas:serviceResponse xmlns:cas="http://www.yale.edu/tp/cas">
  <cas:authenticationFailure code="INVALID_TICKET">
    Ticket ST-12345 not recognized
  </cas:authenticationFailure>
</cas:serviceResponse>`

func TestValidateTicketSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/cas/serviceValidate", r.URL.Path)
		require.Equal(t, "ST-ok", r.URL.Query().Get("ticket"))
		require.Equal(t, "https://app.example.edu/login", r.URL.Query().Get("service"))
		fmt.Fprint(w, successBody)
	}))
	defer srv.Close()

	c := New(srv.URL + "/cas")
	netid, err := c.ValidateTicket(context.Background(), "ST-ok", "https://app.example.edu/login")
	require.NoError(t, err)
	// netids are normalized to lower case
	require.Equal(t, "hc8499", netid)
}

func TestValidateTicketFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, failureBody)
	}))
	defer srv.Close()

	c := New(srv.URL + "/cas/")
	_, err := c.ValidateTicket(context.Background(), "ST-bad", "https://app.example.edu/login")
	require.ErrorIs(t, err, ErrTicketInvalid)
}

func TestValidateTicketBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := New(srv.URL + "/cas/")
	_, err := c.ValidateTicket(context.Background(), "ST-x", "svc")
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrTicketInvalid)
}

func TestStripTicket(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"https://app.example.edu/login?ticket=ST-1", "https://app.example.edu/login"},
		{"https://app.example.edu/login?next=%2Fhome&ticket=ST-1", "https://app.example.edu/login?next=%2Fhome"},
		{"https://app.example.edu/login", "https://app.example.edu/login"},
	}
	for _, tc := range tests {
		require.Equal(t, tc.want, StripTicket(tc.in))
	}
}
