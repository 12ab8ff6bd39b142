package smsc

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc, opts ...Option) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	opts = append([]Option{
		WithBaseURL(server.URL + "/sys/"),
		WithHTTPClient(server.Client()),
	}, opts...)
	return New("alexey", "psw", opts...)
}

func mustSMS(t *testing.T, text string, opts ...MessageOption) *Message {
	t.Helper()
	m, err := NewSMSMessage(text, opts...)
	require.NoError(t, err)
	return m
}

func TestNew_Defaults(t *testing.T) {
	c := New("alexey", "psw")
	assert.Equal(t, DefaultBaseURL, c.baseURL)
	assert.Equal(t, DefaultSender, c.sender)
	assert.Equal(t, `<Client login="alexey" sender="SMSC.ru">`, c.String())

	c = New("alexey", "psw", WithSender("mysender"), WithBaseURL("http://localhost:9999/sys"))
	assert.Equal(t, "mysender", c.sender)
	assert.Equal(t, "http://localhost:9999/sys/", c.baseURL, "missing trailing slash is appended")
}

func TestClient_Send_Success(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/sys/send.php", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "alexey", q.Get("login"))
		assert.Equal(t, "psw", q.Get("psw"))
		assert.Equal(t, "3", q.Get("fmt"))
		assert.Equal(t, DefaultSender, q.Get("sender"))
		assert.Equal(t, "2", q.Get("cost"))
		assert.Equal(t, "79999999999", q.Get("phones"))
		assert.Equal(t, "test", q.Get("mes"))
		assert.Empty(t, q.Get("flash"))
		assert.Empty(t, q.Get("viber"))
		assert.Empty(t, q.Get("translit"))

		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.Write([]byte(`{"cnt":1,"id":1,"cost":1.44}`))
	})

	resp, err := client.Send(context.Background(), []string{"79999999999"}, mustSMS(t, "test"))
	require.NoError(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, int64(1), resp.MessageID)
	assert.Equal(t, 1, resp.Count)
	assert.Equal(t, 1.44, resp.Cost)
	assert.Nil(t, resp.Err)
}

func TestClient_Send_MultipleRecipients(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "79999999999,79999999998", r.URL.Query().Get("phones"))
		w.Write([]byte(`{"cnt":2,"id":2,"cost":2.88}`))
	})

	resp, err := client.Send(context.Background(), []string{"79999999999", "79999999998"}, mustSMS(t, "test"))
	require.NoError(t, err)
	assert.Equal(t, int64(2), resp.MessageID)
}

func TestClient_Send_ViberAndOptions(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "1", q.Get("viber"))
		assert.Equal(t, "1", q.Get("translit"))
		assert.Equal(t, "1", q.Get("tinyurl"))
		assert.Equal(t, "1", q.Get("maxsms"))
		w.Write([]byte(`{"cnt":1,"id":1,"cost":1.44}`))
	})

	msg, err := NewViberMessage("test", WithTranslit(1), WithTinyURL(1), WithMaxSMS(1))
	require.NoError(t, err)
	_, err = client.Send(context.Background(), []string{"79999999999"}, msg)
	require.NoError(t, err)
}

func TestClient_Send_BusinessError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error":"can't to deliver","id":1,"error_code":8}`))
	})

	resp, err := client.Send(context.Background(), []string{"79999999999"}, mustSMS(t, "test"))
	require.NoError(t, err, "a gateway business error is not a transport failure")
	require.NotNil(t, resp.Err)
	assert.Equal(t, 8, resp.Err.Code)
	assert.Equal(t, "can't to deliver", resp.Err.Message)
}

func TestClient_Send_HTTPError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`not found`))
	})

	resp, err := client.Send(context.Background(), []string{"79999999999"}, mustSMS(t, "test"))
	require.Error(t, err)
	assert.Nil(t, resp)
	assert.ErrorIs(t, err, ErrSend)
	assert.ErrorIs(t, err, ErrClient)

	var gwErr *GatewayError
	require.ErrorAs(t, err, &gwErr)
	assert.Equal(t, http.StatusNotFound, gwErr.StatusCode)
	assert.Equal(t, []byte("not found"), gwErr.Body)
	assert.NotNil(t, gwErr.Header)
}

func TestClient_Send_ContextCanceled(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := client.Send(ctx, []string{"79999999999"}, mustSMS(t, "test"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSend)
}

func TestClient_GetCost(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/sys/send.php", r.URL.Path)
		assert.Equal(t, "1", r.URL.Query().Get("cost"))
		w.Write([]byte(`{"cnt":1,"cost":1.44}`))
	})

	resp, err := client.GetCost(context.Background(), []string{"79999999999"}, mustSMS(t, "test"))
	require.NoError(t, err)
	assert.Equal(t, 1, resp.Count)
	assert.Equal(t, 1.44, resp.Cost)
	assert.Nil(t, resp.Err)
}

func TestClient_GetCost_HTTPError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := client.GetCost(context.Background(), []string{"79999999999"}, mustSMS(t, "test"))
	assert.ErrorIs(t, err, ErrGetCost)
}

func TestClient_GetStatus(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/sys/status.php", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "utf-8", q.Get("charset"))
		assert.Equal(t, "2", q.Get("all"))
		assert.Equal(t, "79999999999,", q.Get("phone"), "single phone gets a trailing comma")
		assert.Equal(t, "1,", q.Get("id"))

		w.Write([]byte(`[{"id":1,"status":1,"status_name":"Доставлено","send_timestamp":1495823967,` +
			`"last_timestamp":1495823972,"send_date":"26.05.2017 21:39:27","last_date":"26.05.2017 21:39:32",` +
			`"phone":"79999999999","operator":"МегаФон"}]`))
	})

	resps, err := client.GetStatus(context.Background(), []string{"79999999999"}, []string{"1"})
	require.NoError(t, err)
	require.Len(t, resps, 1)

	resp := resps[0]
	assert.Equal(t, 1, resp.Status.ID)
	assert.Equal(t, "Доставлено", resp.Status.Name)
	assert.Contains(t, resp.Data, "send_date")
	assert.NotContains(t, resp.Data, "send_timestamp")
	assert.NotContains(t, resp.Data, "status_name")
}

func TestClient_GetStatus_MultiplePairs(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "79999999999,79999999998", q.Get("phone"), "multi-element lists get no trailing comma")
		assert.Equal(t, "1,2", q.Get("id"))
		w.Write([]byte(`[{"id":1,"status":1,"status_name":"Доставлено"},{"id":2,"status":3,"status_name":"Просрочено"}]`))
	})

	resps, err := client.GetStatus(context.Background(), []string{"79999999999", "79999999998"}, []string{"1", "2"})
	require.NoError(t, err)
	require.Len(t, resps, 2)
	assert.Equal(t, 1, resps[0].Status.ID, "element order must be preserved")
	assert.Equal(t, 3, resps[1].Status.ID)
}

func TestClient_GetStatus_ObjectBody(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error":"parameters error","error_code":1}`))
	})

	resps, err := client.GetStatus(context.Background(), []string{"79999999999"}, []string{"1"})
	require.Error(t, err, "an object instead of a list is a failure even under HTTP 200")
	assert.Nil(t, resps)
	assert.ErrorIs(t, err, ErrGetStatus)

	var gwErr *GatewayError
	require.ErrorAs(t, err, &gwErr)
	assert.Contains(t, string(gwErr.Body), "parameters error")
}

func TestClient_GetStatus_HTTPError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	_, err := client.GetStatus(context.Background(), []string{"79999999999"}, []string{"1"})
	assert.ErrorIs(t, err, ErrGetStatus)
}

func TestClient_GetBalance(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/sys/balance.php", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "1", q.Get("cur"))
		assert.Equal(t, "alexey", q.Get("login"))
		w.Write([]byte(`{"balance":"100.01","currency":"RUR"}`))
	})

	resp, err := client.GetBalance(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 100.01, resp.Balance)
	assert.Equal(t, 0.0, resp.Credit)
	assert.Equal(t, "RUR", resp.Currency)
}

func TestClient_GetBalance_HTTPError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	_, err := client.GetBalance(context.Background())
	assert.ErrorIs(t, err, ErrGetBalance)
	assert.ErrorIs(t, err, ErrClient)
}

func TestClient_Metrics(t *testing.T) {
	fail := false
	reg := prometheus.NewRegistry()
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if fail {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"cnt":1,"id":1,"cost":1.44}`))
	}, WithMetrics(reg))

	_, err := client.Send(context.Background(), []string{"79999999999"}, mustSMS(t, "test"))
	require.NoError(t, err)
	fail = true
	_, err = client.Send(context.Background(), []string{"79999999999"}, mustSMS(t, "test"))
	require.Error(t, err)

	families, err := reg.Gather()
	require.NoError(t, err)

	counts := map[string]float64{}
	haveDurations := false
	for _, family := range families {
		switch family.GetName() {
		case "smsc_gateway_request_duration_seconds":
			haveDurations = true
		case "smsc_gateway_requests_total":
			for _, metric := range family.GetMetric() {
				var op, outcome string
				for _, label := range metric.GetLabel() {
					switch label.GetName() {
					case "op":
						op = label.GetValue()
					case "outcome":
						outcome = label.GetValue()
					}
				}
				counts[op+"/"+outcome] = metric.GetCounter().GetValue()
			}
		}
	}
	assert.Equal(t, 1.0, counts["send/success"])
	assert.Equal(t, 1.0, counts["send/error"])
	assert.True(t, haveDurations)
}
