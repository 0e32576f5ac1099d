package commands

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	chimiddleware "github.com/go-chi/chi/middleware"
	"github.com/go-chi/chi/v5"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/nsplit-app/nsplit/api"
	"github.com/nsplit-app/nsplit/audit"
	"github.com/nsplit-app/nsplit/config"
	"github.com/nsplit-app/nsplit/currency"
	"github.com/nsplit-app/nsplit/ledger"
	"github.com/nsplit-app/nsplit/middleware"
	"github.com/nsplit-app/nsplit/session"
	"github.com/nsplit-app/nsplit/storage"
	"github.com/nsplit-app/nsplit/user"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}
}

func runServe() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		return err
	}

	if err := storage.RunMigrations(db); err != nil {
		return err
	}

	rates, err := currency.NewLoader(cfg.RatesFile)
	if err != nil {
		return err
	}
	stopWatch, err := rates.Watch()
	if err != nil {
		return err
	}
	defer stopWatch()

	sink, closeSink, err := buildAuditSink(db)
	if err != nil {
		return err
	}
	defer closeSink()

	worker := audit.NewWorker(sink, cfg.AuditBufferSize)
	worker.Start()
	defer worker.Shutdown()

	userRepo := user.NewRepository(db)
	sessionRepo := session.NewRepository(db)
	ledgerRepo := ledger.NewRepository(db)
	ledgerService := ledger.NewService(ledgerRepo, rates, worker)

	router := chi.NewRouter()
	router.Use(chimiddleware.Logger)
	router.Use(middleware.AuthMiddleware(sessionRepo))

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	router.Handle("/metrics", promhttp.Handler())

	router.Post("/user/register", registerHandler(userRepo, sessionRepo, worker))
	router.Post("/user/login", loginHandler(userRepo, sessionRepo, worker))

	// Protected routes - require authentication
	router.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth())

		api.NewHandler(ledgerService).Routes(r)

		r.Get("/user/profile", profileHandler(userRepo))
		r.Post("/user/profile/update-name", updateNameHandler(userRepo, worker))

		r.Post("/user/logout", func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(session.CookieName)
			if err == nil {
				sessionRepo.Delete(r.Context(), cookie.Value)
			}

			http.SetCookie(w, &http.Cookie{
				Name:   session.CookieName,
				Value:  "",
				Path:   "/",
				MaxAge: -1,
			})

			w.WriteHeader(http.StatusNoContent)
		})
	})

	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		slog.Info("server starting", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	group.Go(func() error {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-groupCtx.Done():
				return nil
			case <-ticker.C:
				deleted, err := sessionRepo.DeleteExpired(groupCtx)
				if err != nil {
					slog.Error("failed to clean up sessions", "error", err)
					continue
				}
				if deleted > 0 {
					slog.Info("expired sessions removed", "count", deleted)
				}
			}
		}
	})

	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	return group.Wait()
}

func buildAuditSink(db *sql.DB) (audit.Sink, func(), error) {
	if cfg.AuditBackend == config.AuditBackendAMQP {
		sink, err := audit.NewAMQPSink(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			return nil, nil, err
		}
		return sink, func() { sink.Close() }, nil
	}
	return audit.NewSQLSink(db), func() {}, nil
}

type credentialsRequest struct {
	Name     string `json:"name,omitempty"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func registerHandler(userRepo user.Repository, sessionRepo session.Repository, worker *audit.Worker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var req credentialsRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}

		registeredUser, err := userRepo.Register(ctx, req.Name, req.Email, req.Password)
		if err != nil {
			switch err {
			case user.ErrEmailExists:
				http.Error(w, err.Error(), http.StatusConflict)
			case user.ErrBlankPassword, user.ErrInvalidEmail, user.ErrBlankName:
				http.Error(w, err.Error(), http.StatusBadRequest)
			default:
				slog.Error("failed to register user", "error", err)
				http.Error(w, "internal server error", http.StatusInternalServerError)
			}
			return
		}

		sess, err := sessionRepo.Create(ctx, registeredUser.ID)
		if err != nil {
			slog.Error("failed to create session", "error", err)
			http.Error(w, "internal server error", http.StatusInternalServerError)
			return
		}
		setSessionCookie(w, sess)

		worker.Record(audit.NewEntry(
			audit.WithAction("user.registered"),
			audit.WithMetadata(map[string]string{
				"user_id": registeredUser.ID.String(),
				"email":   registeredUser.Email,
			}),
		))

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(registeredUser)
	}
}

func loginHandler(userRepo user.Repository, sessionRepo session.Repository, worker *audit.Worker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var req credentialsRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}

		userdb, err := userRepo.GetByEmail(ctx, req.Email)
		if err != nil {
			slog.Error("failed to fetch user", "error", err)
			http.Error(w, "internal server error", http.StatusInternalServerError)
			return
		}
		if userdb == nil {
			http.Error(w, "invalid email or password", http.StatusUnauthorized)
			return
		}

		if err := userRepo.VerifyPassword(userdb.PasswordHash, req.Password); err != nil {
			http.Error(w, "invalid email or password", http.StatusUnauthorized)
			return
		}

		sess, err := sessionRepo.Create(ctx, userdb.ID)
		if err != nil {
			slog.Error("failed to create session", "error", err)
			http.Error(w, "internal server error", http.StatusInternalServerError)
			return
		}
		setSessionCookie(w, sess)

		worker.Record(audit.NewEntry(
			audit.WithAction("user.logged_in"),
			audit.WithMetadata(map[string]string{
				"user_id":    userdb.ID.String(),
				"session_id": sess.ID.String(),
			}),
		))

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(userdb)
	}
}

func profileHandler(userRepo user.Repository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, _ := middleware.GetUserID(r.Context())

		userdb, err := userRepo.GetByID(r.Context(), userID)
		if err != nil {
			slog.Error("failed to fetch user", "error", err)
			http.Error(w, "internal server error", http.StatusInternalServerError)
			return
		}
		if userdb == nil {
			http.Error(w, "user not found", http.StatusNotFound)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(userdb)
	}
}

type updateNameRequest struct {
	Name string `json:"name"`
}

func updateNameHandler(userRepo user.Repository, worker *audit.Worker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, _ := middleware.GetUserID(r.Context())

		var req updateNameRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		if req.Name == "" {
			http.Error(w, user.ErrBlankName.Error(), http.StatusBadRequest)
			return
		}

		if err := userRepo.UpdateName(r.Context(), userID, req.Name); err != nil {
			slog.Error("failed to update name", "error", err)
			http.Error(w, "internal server error", http.StatusInternalServerError)
			return
		}

		worker.Record(audit.NewEntry(
			audit.WithAction("user.name_updated"),
			audit.WithMetadata(map[string]string{
				"user_id": userID.String(),
				"name":    req.Name,
			}),
		))

		w.WriteHeader(http.StatusNoContent)
	}
}

func setSessionCookie(w http.ResponseWriter, sess *session.Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     session.CookieName,
		Value:    sess.Token,
		Path:     "/",
		Expires:  sess.ExpiresAt,
		HttpOnly: true,
		Secure:   false,
		SameSite: http.SameSiteLaxMode,
	})
}
