package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"carpool/internal/booking/consumer"
	"carpool/internal/booking/effects"
	"carpool/internal/booking/handler"
	"carpool/internal/booking/infrastructure/messaging"
	"carpool/internal/booking/infrastructure/repository"
	"carpool/internal/booking/service"
	"carpool/pkg/auth"
	"carpool/pkg/config"
	"carpool/pkg/db"
	"carpool/pkg/logger"
	"carpool/pkg/rabbitmq"
	"carpool/pkg/websocket"

	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.LoadConfig(".env")
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	log := logger.NewLogger("booking-service")
	log.Info("service_starting", fmt.Sprintf("Booking Service starting on port %d", cfg.HTTP.Port))

	dbConn, err := db.NewConnection(cfg, log)
	if err != nil {
		log.Error("db_connect_failed", err)
		os.Exit(1)
	}
	defer dbConn.Close()

	rabbit, err := rabbitmq.NewConnection(cfg, log)
	if err != nil {
		log.Error("rabbitmq_connect_failed", err)
		os.Exit(1)
	}
	defer rabbit.Close()

	jwtManager := auth.NewJWTManager(cfg.Auth.Secret, cfg.Auth.TokenDuration)
	wsManager := websocket.NewManager(log)

	// Persistence
	rideRepo := repository.NewPostgresRideRepository(dbConn)
	requestRepo := repository.NewPostgresRequestRepository(dbConn)
	store := repository.NewPostgresTransitionStore(dbConn)
	rosterRepo := repository.NewPostgresRosterRepository(dbConn)
	effectRepo := repository.NewPostgresEffectRepository(dbConn)
	notifRepo := repository.NewPostgresNotificationRepository(dbConn)

	// Messaging
	eventPublisher := messaging.NewRabbitMQEventPublisher(rabbit, log)
	notificationSink := messaging.NewRabbitMQNotificationSink(rabbit)
	chatSeeder := messaging.NewRabbitMQChatSeeder(rabbit)

	// Core services
	coordinator := service.NewRideCoordinator(cfg.Booking.LockWait, log)
	ledger := service.NewRideLedger(log)
	gate := service.NewAccessGate(rideRepo, requestRepo, rosterRepo, log)

	dispatcher := effects.NewDispatcher(
		effectRepo, rosterRepo, notifRepo,
		notificationSink, chatSeeder,
		cfg.Booking.EffectPollInterval, cfg.Booking.EffectBatchSize,
		log,
	)

	// Use cases
	createRide := service.NewCreateRideUseCase(rideRepo, log)
	cancelRide := service.NewCancelRideUseCase(rideRepo, requestRepo, store, ledger, coordinator, eventPublisher, log)
	deleteRide := service.NewDeleteRideUseCase(rideRepo, requestRepo, coordinator, log)
	submitRequest := service.NewSubmitRequestUseCase(rideRepo, requestRepo, store, coordinator, eventPublisher, log)
	acceptRequest := service.NewAcceptRequestUseCase(rideRepo, requestRepo, store, ledger, coordinator, eventPublisher, log)
	rejectRequest := service.NewRejectRequestUseCase(rideRepo, requestRepo, store, coordinator, eventPublisher, log)
	cancelRequest := service.NewCancelRequestUseCase(rideRepo, requestRepo, store, ledger, coordinator, eventPublisher, log)
	instantBook := service.NewInstantBookUseCase(rideRepo, requestRepo, store, ledger, coordinator, eventPublisher, log)

	// HTTP handlers
	rideHandler := handler.NewRideHandler(createRide, cancelRide, deleteRide, rideRepo, gate, log)
	requestHandler := handler.NewRequestHandler(submitRequest, acceptRequest, rejectRequest, cancelRequest, instantBook, rideRepo, requestRepo, log)
	notificationHandler := handler.NewNotificationHandler(notifRepo, log)
	authHandler := handler.NewAuthHandler(jwtManager, log)
	chatHub := handler.NewChatHub(log)

	// Broker consumers push live updates to connected clients
	bookingConsumer := consumer.New(rabbit, wsManager, log)
	if err := bookingConsumer.StartConsuming(); err != nil {
		log.Error("consumer_start_failed", err)
		os.Exit(1)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", rideHandler.Health)
	mux.HandleFunc("POST /auth/token", authHandler.GenerateTestToken)

	protected := func(h http.HandlerFunc) http.Handler {
		return jwtManager.AuthMiddleware(h)
	}

	mux.Handle("POST /rides", protected(rideHandler.CreateRide))
	mux.Handle("GET /rides", protected(rideHandler.ListRides))
	mux.Handle("GET /rides/{ride_id}", protected(rideHandler.GetRide))
	mux.Handle("POST /rides/{ride_id}/cancel", protected(rideHandler.CancelRide))
	mux.Handle("DELETE /rides/{ride_id}", protected(rideHandler.DeleteRide))
	mux.Handle("GET /rides/{ride_id}/roster", protected(rideHandler.GetRoster))

	mux.Handle("POST /rides/{ride_id}/requests", protected(requestHandler.SubmitRequest))
	mux.Handle("POST /rides/{ride_id}/book", protected(requestHandler.InstantBook))
	mux.Handle("GET /rides/{ride_id}/requests", protected(requestHandler.ListRideRequests))
	mux.Handle("GET /requests", protected(requestHandler.ListMyRequests))
	mux.Handle("POST /requests/{request_id}/accept", protected(requestHandler.AcceptRequest))
	mux.Handle("POST /requests/{request_id}/reject", protected(requestHandler.RejectRequest))
	mux.Handle("POST /requests/{request_id}/cancel", protected(requestHandler.CancelRequest))

	mux.Handle("GET /notifications", protected(notificationHandler.List))
	mux.Handle("POST /notifications/read", protected(notificationHandler.MarkAllRead))
	mux.Handle("POST /notifications/{notification_id}/read", protected(notificationHandler.MarkRead))

	// Live notification stream, one connection per user
	notifyWs := websocket.NewHandler(log, jwtManager, nil, func(conn *websocket.Connection) {
		userID := conn.Claims.UserID
		wsManager.AddConnection(userID, conn)
		conn.ReadPump(
			func(msgType int, p []byte) {},
			func() { wsManager.RemoveConnection(userID) },
		)
	})
	mux.Handle("GET /ws", notifyWs)

	// Ride chat, gated on participation
	mux.HandleFunc("GET /ws/rides/{ride_id}/chat", func(w http.ResponseWriter, r *http.Request) {
		rideID := r.PathValue("ride_id")

		chatWs := websocket.NewHandler(log, jwtManager,
			func(r *http.Request, claims *auth.AppClaims) error {
				ok, err := gate.IsParticipant(r.Context(), rideID, claims.UserID)
				if err != nil {
					return err
				}
				if !ok {
					return errors.New("not a participant of this ride")
				}
				return nil
			},
			func(conn *websocket.Connection) {
				chatHub.Join(rideID, conn)
				conn.ReadPump(
					func(msgType int, p []byte) {
						var msg struct {
							Message string `json:"message"`
						}
						if err := json.Unmarshal(p, &msg); err != nil || msg.Message == "" {
							return
						}
						chatHub.Broadcast(rideID, conn, msg.Message)
					},
					func() { chatHub.Leave(rideID, conn) },
				)
			},
		)
		chatWs.ServeHTTP(w, r)
	})

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler: mux,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		err := dispatcher.Run(ctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	g.Go(func() error {
		<-ctx.Done()
		log.Info("server_shutdown", "Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	log.Info("server_running", fmt.Sprintf("Booking Service running on :%d", cfg.HTTP.Port))

	if err := g.Wait(); err != nil {
		log.Error("server_failed", err)
		os.Exit(1)
	}
	log.Info("server_stopped", "Booking Service stopped")
}
