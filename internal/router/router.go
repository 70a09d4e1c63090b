package router

import (
	"database/sql"
	"net/http"

	mem "epetcare/internal/adapters/storage/memory"
	pg "epetcare/internal/adapters/storage/postgres"
	"epetcare/internal/domain/accounts"
	"epetcare/internal/domain/appointments"
	"epetcare/internal/domain/changes"
	"epetcare/internal/domain/dbsync"
	"epetcare/internal/domain/notifications"
	"epetcare/internal/domain/owners"
	"epetcare/internal/domain/pets"
	"epetcare/internal/domain/records"
	"epetcare/internal/middleware"
	"epetcare/internal/platform/logger"
	"epetcare/internal/ports/auth"

	_ "epetcare/docs"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	httpSwagger "github.com/swaggo/http-swagger"
)

type Options struct {
	AuthVerifier auth.AuthVerifier // puede ser nil (solo DevAuth)
	TokenIssuer  auth.TokenIssuer

	// DevAuth acepta X-Debug-User-ID / X-Debug-Role.
	DevAuth bool

	// Opcional: si viene, usa Postgres. Si no, in-memory.
	DB *sql.DB

	// BackupDir: snapshot previo a cada upload. Vacío => sin backup.
	BackupDir string

	Logger logger.Logger
}

type repos struct {
	accounts      accounts.Repository
	owners        owners.Repository
	pets          pets.Repository
	appointments  appointments.Repository
	records       records.RecordRepository
	prescriptions records.PrescriptionRepository
	notifications notifications.Repository
	changes       changes.Repository
	store         dbsync.Store
}

func newRepos(db *sql.DB) repos {
	if db != nil {
		return repos{
			accounts:      pg.NewAccountsRepo(db),
			owners:        pg.NewOwnersRepo(db),
			pets:          pg.NewPetsRepo(db),
			appointments:  pg.NewAppointmentsRepo(db),
			records:       pg.NewRecordsRepo(db),
			prescriptions: pg.NewPrescriptionsRepo(db),
			notifications: pg.NewNotificationsRepo(db),
			changes:       pg.NewChangesRepo(db),
			store:         pg.NewSnapshotStore(db),
		}
	}

	// Repos in-memory; los clínicos comparten el Store para export/replace.
	store := mem.NewStore()
	return repos{
		accounts:      mem.NewAccountRepo(),
		owners:        store.Owners(),
		pets:          store.Pets(),
		appointments:  store.Appointments(),
		records:       store.Records(),
		prescriptions: store.Prescriptions(),
		notifications: mem.NewNotificationRepo(),
		changes:       mem.NewChangeRepo(),
		store:         store,
	}
}

func NewRouter(opts Options) http.Handler {
	log := opts.Logger
	if log == nil {
		log = logger.Nop()
	}

	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestLogger(log))
	r.Use(middleware.Recover(log))

	r.Use(middleware.AuthContext(opts.AuthVerifier, opts.DevAuth))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json")))

	rp := newRepos(opts.DB)

	// Services por módulo
	accountsSvc := accounts.NewService(rp.accounts, opts.TokenIssuer)
	ownersSvc := owners.NewService(rp.owners)
	petsSvc := pets.NewService(rp.pets, ownersSvc)
	notificationsSvc := notifications.NewService(rp.notifications)
	appointmentsSvc := appointments.NewService(rp.appointments, petsSvc, notificationsSvc)
	recordsSvc := records.NewService(rp.records, rp.prescriptions, petsSvc)
	dbsyncSvc := dbsync.NewService(rp.store, opts.BackupDir, log)

	changesSvc := changes.NewService(rp.changes)
	changesSvc.Register(changes.ModelAppointment, appointmentsSvc)
	changesSvc.Register(changes.ModelMedicalRecord, changes.ApplierFunc(recordsSvc.ApplyRecordChange))
	changesSvc.Register(changes.ModelPrescription, changes.ApplierFunc(recordsSvc.ApplyPrescriptionChange))

	// Tokens: /api-token-auth/, /api/token/ y /vet_portal/api-token-auth/
	accounts.RegisterTokenRoutes(r, accountsSvc)
	r.Route("/vet_portal", func(vr chi.Router) {
		accounts.RegisterTokenRoutes(vr, accountsSvc)
	})

	api := func(ar chi.Router) {
		accounts.RegisterRoutes(ar, accountsSvc)

		// Vet Portal: solo veterinarios (y admin)
		ar.Group(func(vr chi.Router) {
			vr.Use(middleware.RequireRole(auth.RoleVet))

			owners.RegisterRoutes(vr, ownersSvc)
			pets.RegisterRoutes(vr, petsSvc)
			appointments.RegisterRoutes(vr, appointmentsSvc)
			records.RegisterRoutes(vr, recordsSvc)
			notifications.RegisterRoutes(vr, notificationsSvc)
			dbsync.RegisterRoutes(vr, dbsyncSvc)
			changes.RegisterRoutes(vr, changesSvc)
		})
	}
	apiRouter := chi.NewRouter()
	api(apiRouter)

	r.Mount("/api", apiRouter)
	r.Mount("/vet_portal/api", apiRouter)

	return r
}
