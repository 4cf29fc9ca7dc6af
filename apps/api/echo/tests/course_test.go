package tests

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/newstandard/academy/core/course"
	"github.com/newstandard/academy/core/user"
	"github.com/newstandard/academy/tests"
)

func Test_courseApi(t *testing.T) {
	app := setup(t)

	admin := testutil.CreateUser(t, usrRepo, "Admin", "admin@test.cd", "", testutil.UserOpts{Roles: []string{user.RoleAdmin}})
	editor := testutil.CreateUser(t, usrRepo, "Editor", "editor@test.cd", "", testutil.UserOpts{Roles: []string{user.RoleEditor}})
	employee := testutil.CreateUser(t, usrRepo, "Employee", "employee@test.cd", "")
	client := testutil.CreateUser(t, usrRepo, "Client", "client@test.cd", "", testutil.UserOpts{Type: user.TypeClient})
	adminToken, editorToken := getToken(t, admin), getToken(t, editor)
	employeeToken, clientToken := getToken(t, employee), getToken(t, client)

	newCourse := marchallObj(t, course.NewCourse{Title: "Customer Care"})
	runHttpTests(t, app, []httpTest{
		{name: "auth required", path: "/v1/courses", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{
			name: "learners cannot author", method: http.MethodPost, path: "/v1/courses", token: employeeToken, body: newCourse,
			wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden),
		},
		{name: "title required", method: http.MethodPost, path: "/v1/courses", token: editorToken, body: []byte(`{"title":" "}`), wantCode: http.StatusBadRequest},
	})

	rec := do(app, http.MethodPost, "/v1/courses", editorToken, newCourse)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var c course.Course
	unmarshal(t, rec, &c)
	assert.False(t, c.IsPublished)

	rec = do(app, http.MethodPost, "/v1/modules", editorToken, marchallObj(t, course.NewModule{CourseID: c.ID, Title: "Calls"}))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var m course.Module
	unmarshal(t, rec, &m)

	lessonIDs := make([]string, 0, 2)
	for i, title := range []string{"Greeting", "Escalation"} {
		rec = do(app, http.MethodPost, "/v1/lessons", editorToken, marchallObj(t, course.NewLesson{ModuleID: m.ID, Title: title, OrderIndex: i}))
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		var l course.Lesson
		unmarshal(t, rec, &l)
		assert.Equal(t, c.ID, l.CourseID)
		lessonIDs = append(lessonIDs, l.ID)
	}

	runHttpTests(t, app, []httpTest{
		{
			name: "module of unknown course", method: http.MethodPost, path: "/v1/modules", token: editorToken,
			body: marchallObj(t, course.NewModule{CourseID: "nope", Title: "X"}), wantCode: http.StatusBadRequest,
		},
		{
			name: "lesson of unknown module", method: http.MethodPost, path: "/v1/lessons", token: editorToken,
			body: marchallObj(t, course.NewLesson{ModuleID: "nope", Title: "X"}), wantCode: http.StatusBadRequest,
		},
		{name: "drafts are hidden from learners", path: "/v1/courses", token: employeeToken, wantData: []byte(`[]`)},
		{
			name: "draft outline", path: "/v1/courses/" + c.ID, token: employeeToken,
			wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: course.ErrNotFound.Error()}),
		},
		{name: "editors see drafts", path: "/v1/courses/" + c.ID, token: editorToken},
		{name: "publish", method: http.MethodPut, path: "/v1/courses/" + c.ID, token: editorToken, body: []byte(`{"is_published":true}`)},
		{name: "published outline", path: "/v1/courses/" + c.ID, token: employeeToken},
	})

	t.Run("access", func(t *testing.T) {
		clientsOnly := marchallObj(t, course.AccessRequest{UserTypes: []string{"Client", "client"}})
		runHttpTests(t, app, []httpTest{
			{name: "admin only", method: http.MethodPut, path: "/v1/courses/" + c.ID + "/access", token: editorToken, body: clientsOnly, wantCode: http.StatusForbidden},
			{
				name: "unknown type", method: http.MethodPut, path: "/v1/courses/" + c.ID + "/access", token: adminToken,
				body: []byte(`{"user_types":["vendor"]}`), wantCode: http.StatusBadRequest,
			},
			{
				name: "clients only", method: http.MethodPut, path: "/v1/courses/" + c.ID + "/access", token: adminToken,
				body: clientsOnly, wantData: []byte(`{"user_types":["client"]}`),
			},
			{name: "read back", path: "/v1/courses/" + c.ID + "/access", token: adminToken, wantData: []byte(`{"user_types":["client"]}`)},
			{name: "employees lose it", path: "/v1/courses", token: employeeToken, wantData: []byte(`[]`)},
			{name: "employees cannot complete", method: http.MethodPost, path: "/v1/lessons/" + lessonIDs[0] + "/complete", token: employeeToken, wantCode: http.StatusNotFound},
		})
	})

	t.Run("progress", func(t *testing.T) {
		rec := do(app, http.MethodPost, "/v1/lessons/"+lessonIDs[0]+"/complete", clientToken)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var res course.CompletionResult
		unmarshal(t, rec, &res)
		assert.False(t, res.CourseCompleted)

		rec = do(app, http.MethodGet, "/v1/courses", clientToken)
		require.Equal(t, http.StatusOK, rec.Code)
		var summaries []course.Summary
		unmarshal(t, rec, &summaries)
		require.Len(t, summaries, 1)
		assert.Equal(t, 2, summaries[0].TotalLessons)
		assert.Equal(t, 50, summaries[0].Progress)

		// without a final exam the last lesson earns the certificate
		rec = do(app, http.MethodPost, "/v1/lessons/"+lessonIDs[1]+"/complete", clientToken)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		res = course.CompletionResult{}
		unmarshal(t, rec, &res)
		assert.True(t, res.CourseCompleted)
		assert.NotEmpty(t, res.CertificateNumber)

		rec = do(app, http.MethodGet, "/v1/courses/"+c.ID, clientToken)
		require.Equal(t, http.StatusOK, rec.Code)
		var out course.Outline
		unmarshal(t, rec, &out)
		require.Len(t, out.Modules, 1)
		require.Len(t, out.Modules[0].Lessons, 2)
		assert.True(t, out.Modules[0].Lessons[1].Completed)
		assert.Equal(t, 100, out.Progress)
	})

	runHttpTests(t, app, []httpTest{
		{name: "learners cannot delete", method: http.MethodDelete, path: "/v1/lessons/" + lessonIDs[0], token: clientToken, wantCode: http.StatusForbidden},
		{name: "delete lesson", method: http.MethodDelete, path: "/v1/lessons/" + lessonIDs[0], token: editorToken, wantCode: http.StatusNoContent},
		{name: "delete module", method: http.MethodDelete, path: "/v1/modules/" + m.ID, token: editorToken, wantCode: http.StatusNoContent},
		{name: "delete course", method: http.MethodDelete, path: "/v1/courses/" + c.ID, token: editorToken, wantCode: http.StatusNoContent},
		{name: "gone", path: "/v1/courses/" + c.ID, token: editorToken, wantCode: http.StatusNotFound},
	})
}
