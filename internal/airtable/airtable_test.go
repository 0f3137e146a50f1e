package airtable

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/hugh/pipedesk/internal/audit"
	"github.com/hugh/pipedesk/internal/database/models"
	"github.com/hugh/pipedesk/internal/settings"
	"github.com/hugh/pipedesk/internal/store"
	"github.com/hugh/pipedesk/internal/testutil"
	"github.com/hugh/pipedesk/pkg/apperr"
	"github.com/hugh/pipedesk/pkg/config"
	"github.com/hugh/pipedesk/pkg/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testAPIKey = "patTESTKEY1234"
	testBaseID = "appTEST"
)

// fakeAirtable serves the subset of the Airtable API the client uses.
type fakeAirtable struct {
	mu          sync.Mutex
	records     []Record
	failFirst   int
	writeSizes  []int
	nextID      int
	listedPages int
}

func (f *fakeAirtable) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failFirst > 0 {
		f.failFirst--
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	if r.Header.Get("Authorization") != "Bearer "+testAPIKey {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error":{"type":"AUTHENTICATION_REQUIRED","message":"Authentication required"}}`)
		return
	}

	switch {
	case r.URL.Path == "/v0/meta/bases/"+testBaseID+"/tables":
		fmt.Fprint(w, `{"tables":[{"id":"tbl1","name":"Leads"},{"id":"tbl2","name":"Deals"}]}`)

	case r.URL.Path == "/v0/"+testBaseID+"/Leads" && r.Method == http.MethodGet:
		f.listedPages++
		// One record per page exercises the offset cursor.
		idx := 0
		if off := r.URL.Query().Get("offset"); off != "" {
			fmt.Sscanf(off, "p%d", &idx)
		}
		page := map[string]any{"records": f.records[idx : idx+1]}
		if idx+1 < len(f.records) {
			page["offset"] = fmt.Sprintf("p%d", idx+1)
		}
		json.NewEncoder(w).Encode(page)

	case r.URL.Path == "/v0/"+testBaseID+"/Leads" && (r.Method == http.MethodPost || r.Method == http.MethodPatch):
		var body struct {
			Records []Record `json:"records"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			w.WriteHeader(http.StatusUnprocessableEntity)
			return
		}
		f.writeSizes = append(f.writeSizes, len(body.Records))
		if len(body.Records) > batchSize {
			w.WriteHeader(http.StatusUnprocessableEntity)
			fmt.Fprint(w, `{"error":{"type":"INVALID_RECORDS","message":"too many records"}}`)
			return
		}
		for i := range body.Records {
			if body.Records[i].ID == "" {
				f.nextID++
				body.Records[i].ID = fmt.Sprintf("recNEW%d", f.nextID)
			}
		}
		json.NewEncoder(w).Encode(body)

	default:
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"error":"NOT_FOUND"}`)
	}
}

func newTestClient(t *testing.T, fake *fakeAirtable) *Client {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)
	return NewClient(config.AirtableConfig{BaseURL: srv.URL, TimeoutSeconds: 5}, testutil.DiscardLogger())
}

func newTestService(t *testing.T, fake *fakeAirtable) (*Service, *settings.Service, *testutil.TestSetup) {
	t.Helper()
	setup := testutil.NewTestContext(t)
	logger := testutil.DiscardLogger()
	enc, err := crypto.NewEncryptor("")
	require.NoError(t, err)
	recorder := audit.NewRecorder(setup.Store, logger)
	settingsSvc := settings.NewService(setup.Store, recorder, enc, logger)
	return NewService(setup.Store, settingsSvc, newTestClient(t, fake), recorder, logger), settingsSvc, setup
}

func TestClient_RetriesOnceOnServerError(t *testing.T) {
	fake := &fakeAirtable{failFirst: 1}
	client := newTestClient(t, fake)

	tables, err := client.ListTables(context.Background(), Credentials{APIKey: testAPIKey, BaseID: testBaseID})
	require.NoError(t, err)
	assert.Len(t, tables, 2)

	fake.failFirst = 2
	_, err = client.ListTables(context.Background(), Credentials{APIKey: testAPIKey, BaseID: testBaseID})
	require.Error(t, err)
	assert.Equal(t, apperr.KindUnavailable, apperr.KindOf(err))
}

func TestClient_ProviderMessage(t *testing.T) {
	client := newTestClient(t, &fakeAirtable{})

	_, err := client.ListTables(context.Background(), Credentials{APIKey: "wrong", BaseID: testBaseID})
	require.Error(t, err)
	assert.Equal(t, 502, apperr.HTTPStatus(err))
	assert.Contains(t, apperr.Message(err), "Authentication required")
}

func TestClient_WritesInBatches(t *testing.T) {
	fake := &fakeAirtable{}
	client := newTestClient(t, fake)

	rows := make([]map[string]any, 23)
	for i := range rows {
		rows[i] = map[string]any{"Name": fmt.Sprintf("Lead %d", i)}
	}
	created, err := client.CreateRecords(context.Background(), Credentials{APIKey: testAPIKey, BaseID: testBaseID}, "Leads", rows)
	require.NoError(t, err)
	assert.Len(t, created, 23)
	assert.Equal(t, []int{10, 10, 3}, fake.writeSizes)
	assert.Equal(t, "recNEW1", created[0].ID)
}

func TestTest_StoresCredentials(t *testing.T) {
	svc, settingsSvc, setup := newTestService(t, &fakeAirtable{})
	ctx := context.Background()

	_, err := svc.Test(ctx, setup.Admin(), Input{})
	assert.ErrorIs(t, err, ErrMissingConfig)

	res, err := svc.Test(ctx, setup.Admin(), Input{APIKey: testAPIKey, BaseID: testBaseID})
	require.NoError(t, err)
	assert.Len(t, res.Tables, 2)

	key, err := settingsSvc.GetString(ctx, setup.Org.ID, settings.KeyAirtableAPIKey)
	require.NoError(t, err)
	assert.Equal(t, testAPIKey, key)

	sub, err := setup.Store.GetSubscription(ctx, setup.Org.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), sub.Usage.Data()[models.UsageTables])

	// Stored credentials are used when none are supplied.
	_, err = svc.Test(ctx, setup.Admin(), Input{})
	assert.NoError(t, err)
}

func TestTest_FailureStoresNothing(t *testing.T) {
	svc, settingsSvc, setup := newTestService(t, &fakeAirtable{})
	ctx := context.Background()

	_, err := svc.Test(ctx, setup.Admin(), Input{APIKey: "wrong", BaseID: testBaseID})
	require.Error(t, err)

	key, err := settingsSvc.GetString(ctx, setup.Org.ID, settings.KeyAirtableAPIKey)
	require.NoError(t, err)
	assert.Empty(t, key)
}

func TestTest_AdminOnly(t *testing.T) {
	svc, _, setup := newTestService(t, &fakeAirtable{})
	_, editor := setup.Member(t, "Ed", models.RoleEditor)

	_, err := svc.Test(context.Background(), editor, Input{APIKey: testAPIKey, BaseID: testBaseID})
	assert.Equal(t, 403, apperr.HTTPStatus(err))
}

func TestSync_Pull(t *testing.T) {
	fake := &fakeAirtable{records: []Record{
		{ID: "rec1", Fields: map[string]any{"Name": "Acme", "Email": "ops@acme.test", "Stage": "Qualified"}},
		{ID: "rec2", Fields: map[string]any{"Name": "Globex", "Stage": "Qualified"}},
		{ID: "rec3", Fields: map[string]any{"Name": "Initech"}},
		{ID: "rec4", Fields: map[string]any{"Email": "no-name@test"}},
	}}
	svc, _, setup := newTestService(t, fake)
	ctx := context.Background()
	in := Input{APIKey: testAPIKey, BaseID: testBaseID}

	res, err := svc.Sync(ctx, setup.Admin(), in, "")
	require.NoError(t, err)
	assert.Equal(t, DirectionPull, res.Direction)
	assert.Equal(t, 3, res.SyncedLeads)
	assert.Equal(t, 2, res.SyncedStages)
	assert.Equal(t, 4, fake.listedPages)

	pipelines, err := setup.Store.ListPipelines(ctx, setup.Org.ID)
	require.NoError(t, err)
	require.Len(t, pipelines, 1)
	assert.Equal(t, ImportPipelineName, pipelines[0].Name)

	lead, err := setup.Store.GetLeadByExternalID(ctx, setup.Org.ID, "rec1")
	require.NoError(t, err)
	require.NotNil(t, lead.Email)
	assert.Equal(t, "ops@acme.test", *lead.Email)

	// A second pull updates in place.
	fake.records[0].Fields["Name"] = "Acme Corp"
	res, err = svc.Sync(ctx, setup.Admin(), in, DirectionPull)
	require.NoError(t, err)
	assert.Equal(t, 3, res.SyncedLeads)
	assert.Equal(t, 0, res.SyncedStages)

	leads, err := setup.Store.ListLeads(ctx, setup.Org.ID, store.LeadFilter{})
	require.NoError(t, err)
	assert.Len(t, leads, 3)

	sub, err := setup.Store.GetSubscription(ctx, setup.Org.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), sub.Usage.Data()[models.UsageOperations])
}

func TestSync_Push(t *testing.T) {
	fake := &fakeAirtable{}
	svc, _, setup := newTestService(t, fake)
	ctx := context.Background()

	_, stage := testutil.CreateTestPipeline(t, setup.Store, setup.Org.ID, "Sales")
	for i := 0; i < 12; i++ {
		testutil.CreateTestLead(t, setup.Store, setup.Org.ID, stage.ID, fmt.Sprintf("Lead %d", i))
	}

	res, err := svc.Sync(ctx, setup.Admin(), Input{APIKey: testAPIKey, BaseID: testBaseID}, DirectionPush)
	require.NoError(t, err)
	assert.Equal(t, 12, res.SyncedLeads)
	assert.Equal(t, []int{10, 2}, fake.writeSizes)

	leads, err := setup.Store.ListLeads(ctx, setup.Org.ID, store.LeadFilter{})
	require.NoError(t, err)
	for _, lead := range leads {
		assert.NotNil(t, lead.ExternalRecordID)
	}

	// Everything now has a record id, so the next push only updates.
	fake.writeSizes = nil
	res, err = svc.Sync(ctx, setup.Admin(), Input{}, DirectionPush)
	require.NoError(t, err)
	assert.Equal(t, 12, res.SyncedLeads)
	assert.Equal(t, []int{10, 2}, fake.writeSizes)
	assert.Equal(t, 12, fake.nextID)
}

func TestSync_InvalidDirection(t *testing.T) {
	svc, _, setup := newTestService(t, &fakeAirtable{})

	_, err := svc.Sync(context.Background(), setup.Admin(), Input{APIKey: testAPIKey, BaseID: testBaseID}, "sideways")
	assert.ErrorIs(t, err, ErrInvalidDirection)
}
