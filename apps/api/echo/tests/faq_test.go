package tests

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	. "github.com/newstandard/academy/apps/api/echo"
	"github.com/newstandard/academy/core/activity"
	"github.com/newstandard/academy/core/faq"
	"github.com/newstandard/academy/core/group"
	"github.com/newstandard/academy/core/user"
	"github.com/newstandard/academy/tests"
)

func uploadDocument(t *testing.T, app Server, token, faqID, contentType string, content []byte) *httptest.ResponseRecorder {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="document"; filename="doc.pdf"`)
	h.Set("Content-Type", contentType)
	part, err := w.CreatePart(h)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPut, "/v1/faqs/"+faqID+"/document", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	app.ServeHTTP(rec, req)
	return rec
}

func Test_faqApi(t *testing.T) {
	app := setup(t)
	ctx := context.Background()

	admin := testutil.CreateUser(t, usrRepo, "Admin", "admin@test.cd", "", testutil.UserOpts{Roles: []string{user.RoleAdmin}})
	editor := testutil.CreateUser(t, usrRepo, "Editor", "editor@test.cd", "", testutil.UserOpts{Roles: []string{user.RoleEditor}})
	insider := testutil.CreateUser(t, usrRepo, "Insider", "in@test.cd", "")
	outsider := testutil.CreateUser(t, usrRepo, "Outsider", "out@test.cd", "")
	adminToken, editorToken := getToken(t, admin), getToken(t, editor)
	inToken, outToken := getToken(t, insider), getToken(t, outsider)

	grp, err := groupSvc.Create(ctx, group.NewGroup{Name: "Sales"})
	require.NoError(t, err)
	require.NoError(t, groupSvc.SetMembers(ctx, grp.ID, []string{insider.ID}))

	newSection := marchallObj(t, faq.NewFAQ{Title: "Sales playbook", IsSection: true})
	runHttpTests(t, app, []httpTest{
		{name: "learners cannot author", method: http.MethodPost, path: "/v1/faqs", token: inToken, body: newSection, wantCode: http.StatusForbidden},
		{
			name: "entry needs a section", method: http.MethodPost, path: "/v1/faqs", token: editorToken,
			body: marchallObj(t, faq.NewFAQ{Title: "Orphan"}), wantCode: http.StatusBadRequest,
		},
	})

	rec := do(app, http.MethodPost, "/v1/faqs", editorToken, newSection)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var section faq.FAQ
	unmarshal(t, rec, &section)

	access := marchallObj(t, faq.SectionAccessRequest{GroupIDs: []string{grp.ID}})
	runHttpTests(t, app, []httpTest{
		{name: "editors cannot restrict", method: http.MethodPut, path: "/v1/faqs/" + section.ID + "/access", token: editorToken, body: access, wantCode: http.StatusForbidden},
		{name: "admin restricts", method: http.MethodPut, path: "/v1/faqs/" + section.ID + "/access", token: adminToken, body: access, wantCode: http.StatusNoContent},
		{name: "member sees it", path: "/v1/faqs/" + section.ID, token: inToken},
		{
			name: "outsider does not", path: "/v1/faqs/" + section.ID, token: outToken,
			wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: faq.ErrNotFound.Error()}),
		},
		{name: "outsider list", path: "/v1/faqs", token: outToken, wantData: []byte(`[]`)},
		{name: "no document yet", path: "/v1/faqs/" + section.ID + "/document", token: inToken, wantCode: http.StatusNotFound},
	})

	t.Run("document", func(t *testing.T) {
		rec := uploadDocument(t, app, editorToken, section.ID, "text/plain", []byte("hello"))
		assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())

		rec = uploadDocument(t, app, editorToken, section.ID, faq.PDFContentType, []byte("%PDF-1.4"))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var f faq.FAQ
		unmarshal(t, rec, &f)
		assert.True(t, f.HasDocument)

		rec = do(app, http.MethodGet, "/v1/faqs/"+section.ID+"/document", inToken)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var doc faq.Document
		unmarshal(t, rec, &doc)
		assert.Contains(t, doc.URL, "http://files.test/faqs/"+section.ID+"/")

		rec = do(app, http.MethodGet, "/v1/faqs/"+section.ID+"/document", outToken)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("notes", func(t *testing.T) {
		rec := do(app, http.MethodPost, "/v1/faqs/"+section.ID+"/notes", inToken, marchallObj(t, faq.NoteRequest{Content: "Call first"}))
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		var n faq.Note
		unmarshal(t, rec, &n)
		assert.Equal(t, "Insider", n.AuthorName)

		edit := marchallObj(t, faq.NoteRequest{Content: "Email first"})
		runHttpTests(t, app, []httpTest{
			{name: "empty note", method: http.MethodPost, path: "/v1/faqs/" + section.ID + "/notes", token: inToken, body: []byte(`{"content":" "}`), wantCode: http.StatusBadRequest},
			{name: "outsider cannot note", method: http.MethodPost, path: "/v1/faqs/" + section.ID + "/notes", token: outToken, body: edit, wantCode: http.StatusNotFound},
			{name: "only the author edits", method: http.MethodPut, path: "/v1/faq-notes/" + n.ID, token: adminToken, body: edit, wantCode: http.StatusForbidden},
			{name: "author edits", method: http.MethodPut, path: "/v1/faq-notes/" + n.ID, token: inToken, body: edit},
			{name: "others cannot delete", method: http.MethodDelete, path: "/v1/faq-notes/" + n.ID, token: outToken, wantCode: http.StatusForbidden},
			{name: "admin deletes", method: http.MethodDelete, path: "/v1/faq-notes/" + n.ID, token: adminToken, wantCode: http.StatusNoContent},
			{name: "gone", method: http.MethodDelete, path: "/v1/faq-notes/" + n.ID, token: adminToken, wantCode: http.StatusNotFound},
		})
	})

	t.Run("activity logs", func(t *testing.T) {
		logs := func(query string) []activity.Log {
			rec := do(app, http.MethodGet, "/v1/admin/logs"+query, adminToken)
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			var out []activity.Log
			unmarshal(t, rec, &out)
			return out
		}

		notes := logs("?table=faq_notes&ordering=created_at")
		require.Len(t, notes, 3)
		assert.Equal(t, activity.ActionInsert, notes[0].Action)
		assert.Equal(t, "Insider", notes[0].UserName)
		assert.Equal(t, activity.ActionUpdate, notes[1].Action)
		assert.True(t, notes[1].OldData.Valid)
		assert.Equal(t, activity.ActionDelete, notes[2].Action)

		views := logs("?action=view")
		require.Len(t, views, 1)
		assert.Equal(t, insider.ID, views[0].UserID)

		assert.Len(t, logs("?user_id="+editor.ID), 1)

		runHttpTests(t, app, []httpTest{
			{name: "admin only", path: "/v1/admin/logs", token: editorToken, wantCode: http.StatusForbidden},
			{name: "unknown action", path: "/v1/admin/logs?action=truncate", token: adminToken, wantCode: http.StatusBadRequest},
		})
	})
}
