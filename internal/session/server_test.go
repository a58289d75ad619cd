package session

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/ghttp"

	"github.com/zombor/cardscan/internal/card"
)

var _ = Describe("Server", func() {
	var (
		db          *mockDB
		recognizer  *mockRecognizer
		service     *Service
		server      *Server
		auth        BasicAuth
		ghttpServer *ghttp.Server
	)

	// setupServer starts a test server that accepts the given number of requests
	setupServer := func(requests int) {
		if ghttpServer != nil {
			ghttpServer.Close()
		}
		server = NewServerWithMux(service, auth, http.NewServeMux())
		ghttpServer = ghttp.NewServer()
		for i := 0; i < requests; i++ {
			ghttpServer.AppendHandlers(server.ServeHTTP)
		}
	}

	postJSON := func(path string, body string) *http.Response {
		resp, err := http.Post(ghttpServer.URL()+path, "application/json", strings.NewReader(body))
		Expect(err).NotTo(HaveOccurred())
		return resp
	}

	decode := func(resp *http.Response, v any) {
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		Expect(err).NotTo(HaveOccurred())
		Expect(json.Unmarshal(body, v)).To(Succeed())
	}

	BeforeEach(func() {
		db = newMockDB()
		recognizer = newMockRecognizer()
		auth = BasicAuth{}
		service = NewServiceWithDeps(db, recognizer, Config{TryCount: 2},
			&mockIDGenerator{id: "sess-1"},
			&mockTimeSource{now: time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)})
		setupServer(1)
	})

	AfterEach(func() {
		if ghttpServer != nil {
			ghttpServer.Close()
		}
	})

	Describe("handleHealth", func() {
		It("should return ok", func() {
			resp, err := http.Get(ghttpServer.URL() + "/healthz")
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			body, _ := io.ReadAll(resp.Body)
			Expect(string(body)).To(Equal("ok"))
		})
	})

	Describe("handleCreateSession", func() {
		When("the body is empty", func() {
			It("should create a session with the default try count", func() {
				resp := postJSON("/api/sessions", "")
				Expect(resp.StatusCode).To(Equal(http.StatusCreated))
				var session Session
				decode(resp, &session)
				Expect(session.ID).To(Equal("sess-1"))
				Expect(session.TryCount).To(Equal(2))
				Expect(session.Status).To(Equal(StatusScanning))
			})
		})

		When("a try count is given", func() {
			It("should use it", func() {
				resp := postJSON("/api/sessions", `{"try_count": 4}`)
				Expect(resp.StatusCode).To(Equal(http.StatusCreated))
				var session Session
				decode(resp, &session)
				Expect(session.TryCount).To(Equal(4))
			})
		})

		When("the try count is negative", func() {
			It("should return status Bad Request", func() {
				resp := postJSON("/api/sessions", `{"try_count": -2}`)
				defer resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
			})
		})

		When("the body is not JSON", func() {
			It("should return status Bad Request", func() {
				resp := postJSON("/api/sessions", `try_count=4`)
				defer resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
			})
		})
	})

	Describe("handleListSessions", func() {
		When("sessions exist", func() {
			BeforeEach(func() {
				db.sessions["a"] = &Session{ID: "a"}
				db.sessions["b"] = &Session{ID: "b"}
			})

			It("should return all sessions", func() {
				resp, err := http.Get(ghttpServer.URL() + "/api/sessions")
				Expect(err).NotTo(HaveOccurred())
				Expect(resp.StatusCode).To(Equal(http.StatusOK))
				Expect(resp.Header.Get("Content-Type")).To(Equal("application/json"))
				var sessions []*Session
				decode(resp, &sessions)
				Expect(sessions).To(HaveLen(2))
			})
		})

		When("no sessions exist", func() {
			It("should return an empty array", func() {
				resp, err := http.Get(ghttpServer.URL() + "/api/sessions")
				Expect(err).NotTo(HaveOccurred())
				var sessions []*Session
				decode(resp, &sessions)
				Expect(sessions).NotTo(BeNil())
				Expect(sessions).To(BeEmpty())
			})
		})
	})

	Describe("handleGetSession", func() {
		It("should return the session", func() {
			db.sessions["abc"] = &Session{ID: "abc", TryCount: 3}
			resp, err := http.Get(ghttpServer.URL() + "/api/sessions/abc")
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			var session Session
			decode(resp, &session)
			Expect(session.TryCount).To(Equal(3))
		})

		It("should return status Not Found for unknown sessions", func() {
			resp, err := http.Get(ghttpServer.URL() + "/api/sessions/missing")
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
		})
	})

	Describe("handleDeleteSession", func() {
		deleteSession := func(id string) *http.Response {
			req, err := http.NewRequest(http.MethodDelete, ghttpServer.URL()+"/api/sessions/"+id, nil)
			Expect(err).NotTo(HaveOccurred())
			resp, err := http.DefaultClient.Do(req)
			Expect(err).NotTo(HaveOccurred())
			return resp
		}

		It("should return status No Content", func() {
			db.sessions["abc"] = &Session{ID: "abc"}
			resp := deleteSession("abc")
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusNoContent))
			Expect(db.sessions).NotTo(HaveKey("abc"))
		})

		It("should return status Not Found for unknown sessions", func() {
			resp := deleteSession("missing")
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
		})
	})

	Describe("handleSubmitFrame", func() {
		var frameBody string

		BeforeEach(func() {
			_, err := service.CreateSession(0)
			Expect(err).NotTo(HaveOccurred())
			frameBody = `{"fragments": ["VALID THRU 11/29", "4111 1111 1111 1111"]}`
		})

		When("the session needs more frames", func() {
			It("should report accumulating", func() {
				resp := postJSON("/api/sessions/sess-1/frames", frameBody)
				Expect(resp.StatusCode).To(Equal(http.StatusOK))
				var result FrameResult
				decode(resp, &result)
				Expect(result.Status).To(Equal(FrameAccumulating))
				Expect(result.Samples).To(Equal(1))
				Expect(result.Card).To(BeNil())
			})
		})

		When("the frame completes the session", func() {
			BeforeEach(func() {
				setupServer(2)
			})

			It("should return the card", func() {
				resp := postJSON("/api/sessions/sess-1/frames", frameBody)
				resp.Body.Close()
				resp = postJSON("/api/sessions/sess-1/frames", frameBody)
				Expect(resp.StatusCode).To(Equal(http.StatusOK))
				var result FrameResult
				decode(resp, &result)
				Expect(result.Status).To(Equal(FrameComplete))
				Expect(result.Card).To(Equal(&card.Record{Number: "4111111111111111", Network: card.Visa, Expiry: "1129"}))
			})
		})

		When("the session is already complete", func() {
			BeforeEach(func() {
				db.sessions["sess-1"].Status = StatusComplete
			})

			It("should return status Conflict", func() {
				resp := postJSON("/api/sessions/sess-1/frames", frameBody)
				defer resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusConflict))
			})
		})

		When("the session does not exist", func() {
			It("should return status Not Found", func() {
				resp := postJSON("/api/sessions/missing/frames", frameBody)
				defer resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
			})
		})

		When("the body is invalid", func() {
			It("should return status Bad Request", func() {
				resp := postJSON("/api/sessions/sess-1/frames", `{"fragments": "4111"}`)
				defer resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
			})
		})
	})

	Describe("handleSubmitImage", func() {
		uploadFrame := func(path string, withFile bool) *http.Response {
			body := &bytes.Buffer{}
			writer := multipart.NewWriter(body)
			if withFile {
				part, err := writer.CreateFormFile("file", "frame.jpg")
				Expect(err).NotTo(HaveOccurred())
				_, err = part.Write([]byte("fake jpeg"))
				Expect(err).NotTo(HaveOccurred())
			}
			Expect(writer.Close()).To(Succeed())

			resp, err := http.Post(ghttpServer.URL()+path, writer.FormDataContentType(), body)
			Expect(err).NotTo(HaveOccurred())
			return resp
		}

		BeforeEach(func() {
			_, err := service.CreateSession(1)
			Expect(err).NotTo(HaveOccurred())
		})

		When("the upload is read", func() {
			It("should return the card", func() {
				resp := uploadFrame("/api/sessions/sess-1/images", true)
				Expect(resp.StatusCode).To(Equal(http.StatusOK))
				var result FrameResult
				decode(resp, &result)
				Expect(result.Status).To(Equal(FrameComplete))
				Expect(result.Card.Number).To(Equal("4111111111111111"))
			})
		})

		When("no file is attached", func() {
			It("should return status Bad Request", func() {
				resp := uploadFrame("/api/sessions/sess-1/images", false)
				defer resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
			})
		})

		When("the recognizer fails", func() {
			BeforeEach(func() {
				recognizer.err = io.ErrUnexpectedEOF
			})

			It("should return status Bad Gateway", func() {
				resp := uploadFrame("/api/sessions/sess-1/images", true)
				defer resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusBadGateway))
			})
		})

		When("no recognizer is configured", func() {
			BeforeEach(func() {
				service.recognizer = nil
			})

			It("should return status Not Implemented", func() {
				resp := uploadFrame("/api/sessions/sess-1/images", true)
				defer resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusNotImplemented))
			})
		})
	})

	Describe("authentication", func() {
		BeforeEach(func() {
			auth = BasicAuth{Username: "admin", Password: "secret"}
			setupServer(1)
		})

		It("should reject requests without credentials", func() {
			resp, err := http.Get(ghttpServer.URL() + "/api/sessions")
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusUnauthorized))
			Expect(resp.Header.Get("WWW-Authenticate")).To(ContainSubstring("Basic"))
		})

		It("should accept valid credentials", func() {
			req, err := http.NewRequest(http.MethodGet, ghttpServer.URL()+"/api/sessions", nil)
			Expect(err).NotTo(HaveOccurred())
			req.Header.Set("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte("admin:secret")))
			resp, err := http.DefaultClient.Do(req)
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
		})

		It("should leave the health check open", func() {
			resp, err := http.Get(ghttpServer.URL() + "/healthz")
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
		})
	})

	Describe("corsMiddleware", func() {
		It("should answer preflight requests", func() {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodOptions, "/api/sessions", nil)
			server.corsMiddleware(server).ServeHTTP(rec, req)
			Expect(rec.Code).To(Equal(http.StatusNoContent))
			Expect(rec.Header().Get("Access-Control-Allow-Origin")).To(Equal("*"))
		})
	})
})
