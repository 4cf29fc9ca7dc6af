package tests

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"

	. "github.com/newstandard/academy/apps/api/echo"
	"github.com/newstandard/academy/core"
	"github.com/newstandard/academy/core/activity"
	"github.com/newstandard/academy/core/certificate"
	"github.com/newstandard/academy/core/course"
	"github.com/newstandard/academy/core/dashboard"
	"github.com/newstandard/academy/core/faq"
	"github.com/newstandard/academy/core/group"
	"github.com/newstandard/academy/core/quiz"
	"github.com/newstandard/academy/core/user"
	"github.com/newstandard/academy/services/email"
	"github.com/newstandard/academy/services/events"
	"github.com/newstandard/academy/services/metrics"
	"github.com/newstandard/academy/services/ratelimit"
	"github.com/newstandard/academy/services/storage"
	"github.com/newstandard/academy/storage/database/inmem"
	"github.com/newstandard/academy/tests"
)

var (
	conf       *core.Config
	usrRepo    user.Repository
	courseRepo course.Repository
	quizRepo   quiz.Repository
	usrSvc     user.Service
	groupSvc   group.Service
	faqSvc     faq.Service
	publisher  *eventsvc.MemoryPublisher

	errMissingToken = httpErr{Error: "missing or malformed jwt"}
	errForbidden    = httpErr{Error: "permission denied"}
)

// setup wires a fresh server on an in-memory database.
func setup(t *testing.T) Server {
	conf = testutil.NewConfig()
	logger := testutil.NewLogger(conf)

	enLocale := en.New()
	translator, _ := ut.New(enLocale, enLocale).GetTranslator("en")
	validate := validator.New()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)

	// set up DB & repos
	db := inmemdb.Open()
	usrRepo = inmemdb.NewUserRepository(db)
	courses := inmemdb.NewCourseRepository(db)
	courseRepo = courses
	quizRepo = inmemdb.NewQuizRepository(db)

	// set up services
	mailSvc := emailsvc.NewConsoleServiceMock(conf)
	publisher = eventsvc.NewMemoryPublisher()
	m := metricsvc.New(prometheus.NewRegistry())

	usrSvc = user.NewService(usrRepo, mailSvc, conf)
	certSvc := certificate.NewService(inmemdb.NewCertificateRepository(db), mailSvc, publisher, m, logger)
	courseSvc := course.NewService(courses, certSvc, logger)
	quizSvc := quiz.NewService(quizRepo, courses, inmemdb.NewTransactor(db), certSvc, publisher, m, logger)
	groupSvc = group.NewService(inmemdb.NewGroupRepository(db), usrSvc)
	faqSvc = faq.NewService(inmemdb.NewFAQRepository(db), storagesvc.NewMemoryStore("http://files.test"), groupSvc, conf)

	// set up server
	return NewServer(ServerDeps{
		Conf:           conf,
		Logger:         logger,
		Validate:       validate,
		Translator:     translator,
		DisableReqLogs: true,
		UserSvc:        usrSvc,
		CourseSvc:      courseSvc,
		QuizSvc:        quizSvc,
		CertificateSvc: certSvc,
		GroupSvc:       groupSvc,
		FAQSvc:         faqSvc,
		ActivitySvc:    activity.NewService(inmemdb.NewActivityRepository(db), logger),
		DashboardSvc:   dashboard.NewService(inmemdb.NewDashboardRepository(db), groupSvc),
		Limiter:        ratelimitsvc.NewMemoryLimiter(conf),
		Metrics:        m,
	})
}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

// do serves one request and returns the recorder.
func do(app Server, method, path, token string, data ...[]byte) *httptest.ResponseRecorder {
	req, rec := newAuthRequest(method, path, token, data...)
	app.ServeHTTP(rec, req)
	return rec
}

func getToken(t *testing.T, usr user.User) string {
	token, err := GenerateToken(conf, GetUserClaims(conf, usr))
	if err != nil {
		t.Fatalf("getToken() failed: %v", err)
	}
	return token
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj() failed: %v", err)
	}
	return data
}

func unmarshal(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("json.Unmarshal(%s) failed: %v", rec.Body.String(), err)
	}
}

func jsonBytesEqual(t *testing.T, b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	if reflect.DeepEqual(j1, j2) {
		return true, nil
	}
	if j1 == nil || j2 == nil {
		return false, nil
	}
	return assert.ElementsMatch(t, j1, j2), nil
}

func runHttpTests(t *testing.T, app Server, tests []httpTest) {
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			method := tt.method
			if method == "" {
				method = http.MethodGet
			}
			rec := do(app, method, tt.path, tt.token, tt.body)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	wantCode := tt.wantCode
	if wantCode == 0 {
		wantCode = http.StatusOK
	}
	if rec.Code != wantCode {
		t.Errorf("failed! code = %v; wantCode %v; body %s", rec.Code, wantCode, rec.Body.String())
	}
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(t, rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}
