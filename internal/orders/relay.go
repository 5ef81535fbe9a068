package orders

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/sellerbridge/sellerbridge/internal/apperrors"
	"github.com/sellerbridge/sellerbridge/internal/config"
	"github.com/sellerbridge/sellerbridge/internal/database"
	"github.com/sellerbridge/sellerbridge/internal/market"
	"github.com/sellerbridge/sellerbridge/internal/models"
	"github.com/sellerbridge/sellerbridge/internal/supplier"
	"github.com/sellerbridge/sellerbridge/internal/token"
	"github.com/sellerbridge/sellerbridge/internal/websocket"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Relay mirrors marketplace orders into the local store, places the
// matching supplier-side orders and propagates tracking info back.
type Relay struct {
	db       *database.DB
	tokens   *token.Store
	supplier supplier.Adapter
	market   market.Adapter
	hub      *websocket.Hub
	cfg      *config.SyncConfig

	stop chan struct{}
	done chan struct{}
}

// NewRelay creates an order relay
func NewRelay(db *database.DB, tokens *token.Store, sup supplier.Adapter, mkt market.Adapter, hub *websocket.Hub, cfg *config.SyncConfig) *Relay {
	return &Relay{
		db:       db,
		tokens:   tokens,
		supplier: sup,
		market:   mkt,
		hub:      hub,
		cfg:      cfg,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start launches the background poll loop over all sync-enabled accounts
func (r *Relay) Start() {
	go r.loop()
	log.Printf("📬 Order relay started (poll interval %v)", r.cfg.OrderPollInterval)
}

// Stop halts the poll loop and waits for the current cycle to finish
func (r *Relay) Stop() {
	close(r.stop)
	<-r.done
	log.Println("🛑 Order relay stopped")
}

func (r *Relay) loop() {
	defer close(r.done)
	ticker := time.NewTicker(r.cfg.OrderPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stop:
			return
		case <-ticker.C:
			r.pollAll()
		}
	}
}

func (r *Relay) pollAll() {
	var accounts []models.SupplierAccount
	if err := r.db.
		Where("is_active = ? AND sync_enabled = ?", true, true).
		Find(&accounts).Error; err != nil {
		log.Printf("Failed to list accounts for order polling: %v", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), r.cfg.OrderPollInterval)
	defer cancel()

	for i := range accounts {
		account := &accounts[i]
		if _, err := r.IngestMarketOrders(ctx, account); err != nil {
			log.Printf("❌ Order ingest failed for account %d: %v", account.ID, err)
		}
		if err := r.RetryPendingPlacements(ctx, account); err != nil {
			log.Printf("❌ Placement retry failed for account %d: %v", account.ID, err)
		}
		if err := r.PropagateShipments(ctx, account); err != nil {
			log.Printf("❌ Shipment propagation failed for account %d: %v", account.ID, err)
		}
	}
}

// IngestMarketOrders pulls new marketplace orders for one account, mirrors
// them locally and places the matching supplier orders. Returns how many
// new orders were mirrored.
func (r *Relay) IngestMarketOrders(ctx context.Context, account *models.SupplierAccount) (int, error) {
	since := time.Now().UTC().Add(-24 * time.Hour)
	if account.LastSyncAt != nil && account.LastSyncAt.After(since) {
		since = *account.LastSyncAt
	}

	creds := market.Credentials{
		AccessKey: account.MarketAccessKey,
		SecretKey: account.MarketSecretKey,
		VendorID:  account.MarketVendorID,
	}
	marketOrders, err := r.market.FetchOrders(ctx, creds, since)
	if err != nil {
		return 0, err
	}

	ingested := 0
	for _, mo := range marketOrders {
		created, err := r.mirrorOrder(ctx, account, mo)
		if err != nil {
			log.Printf("❌ Failed to mirror order %s: %v", mo.OrderID, err)
			continue
		}
		if created {
			ingested++
		}
	}

	if ingested > 0 {
		log.Printf("📦 Mirrored %d new orders for account %d", ingested, account.ID)
	}
	return ingested, nil
}

// mirrorOrder stores one marketplace order and places the supplier-side
// order for it. Idempotent by marketplace order id.
func (r *Relay) mirrorOrder(ctx context.Context, account *models.SupplierAccount, mo market.MarketOrder) (bool, error) {
	var existing models.Order
	err := r.db.Where("market_order_id = ?", mo.OrderID).First(&existing).Error
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return false, err
	}

	order := &models.Order{
		AccountID:     account.ID,
		MarketOrderID: mo.OrderID,
		Status:        models.OrderStatusPending,
		ShippingFee:   mo.ShippingFee,
		RecipientInfo: datatypes.JSON(mo.Recipient),
	}
	for _, line := range mo.Lines {
		order.Items = append(order.Items, models.OrderItem{
			ItemKey:     line.ItemKey,
			ProductName: line.ProductName,
			Quantity:    line.Quantity,
			UnitPrice:   line.UnitPrice,
		})
	}
	// Total is derived, never taken from the payload
	order.TotalPrice = order.ComputeTotal()

	// Stock mismatches are reported in the note, they never block relay
	if notes := r.stockWarnings(account.ID, order.Items); len(notes) > 0 {
		order.Note = strings.Join(notes, "; ")
	}

	if err := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "market_order_id"}},
		DoNothing: true,
	}).Create(order).Error; err != nil {
		return false, err
	}

	if err := r.placeSupplierOrder(ctx, account, order); err != nil {
		// The next poll cycle retries placement from the stored row
		log.Printf("⚠️  Supplier order placement deferred for %s: %v", mo.OrderID, err)
	}

	r.notify(order)
	return true, nil
}

// stockWarnings compares ordered quantities against the cached catalog
func (r *Relay) stockWarnings(accountID uint, items []models.OrderItem) []string {
	var notes []string
	for _, it := range items {
		var product models.Product
		err := r.db.
			Where("account_id = ? AND item_key = ?", accountID, it.ItemKey).
			First(&product).Error
		if err != nil {
			notes = append(notes, fmt.Sprintf("item %s not in local catalog", it.ItemKey))
			continue
		}
		if product.StockQuantity < it.Quantity {
			notes = append(notes, fmt.Sprintf("item %s stock %d below ordered %d", it.ItemKey, product.StockQuantity, it.Quantity))
		}
	}
	return notes
}

// placementRequest builds the supplier order request from the stored row,
// so a deferred placement can be retried long after the marketplace
// payload is gone.
func placementRequest(order *models.Order) supplier.PlaceOrderRequest {
	req := supplier.PlaceOrderRequest{Note: order.Note}
	for _, it := range order.Items {
		req.Lines = append(req.Lines, supplier.OrderLine{
			ItemKey:  it.ItemKey,
			Quantity: it.Quantity,
			Price:    it.UnitPrice,
		})
	}
	if len(order.RecipientInfo) > 0 {
		var recipient map[string]interface{}
		if err := json.Unmarshal(order.RecipientInfo, &recipient); err == nil {
			req.Recipient = recipient
		}
	}
	return req
}

// placeSupplierOrder forwards the mirrored order to the supplier and
// stores the returned order key.
func (r *Relay) placeSupplierOrder(ctx context.Context, account *models.SupplierAccount, order *models.Order) error {
	tok, err := r.tokens.GetValidToken(ctx, account.ID)
	if err != nil {
		return err
	}

	orderKey, err := r.supplier.PlaceOrder(ctx, tok.Value, placementRequest(order))
	if err != nil {
		return err
	}

	return r.db.Model(&models.Order{}).
		Where("id = ?", order.ID).
		Updates(map[string]interface{}{
			"order_key": orderKey,
			"status":    models.OrderStatusConfirmed,
		}).Error
}

// RetryPendingPlacements re-attempts supplier placement for mirrored
// orders whose earlier placement failed. They stay pending without an
// order key until a pass succeeds.
func (r *Relay) RetryPendingPlacements(ctx context.Context, account *models.SupplierAccount) error {
	var stuck []models.Order
	if err := r.db.Preload("Items").
		Where("account_id = ? AND status = ? AND order_key = ''", account.ID, models.OrderStatusPending).
		Find(&stuck).Error; err != nil {
		return err
	}

	for i := range stuck {
		order := &stuck[i]
		if err := r.placeSupplierOrder(ctx, account, order); err != nil {
			log.Printf("⚠️  Supplier order placement still pending for %s: %v", order.MarketOrderID, err)
			continue
		}
		order.Status = models.OrderStatusConfirmed
		r.notify(order)
		log.Printf("📦 Placed deferred supplier order for %s", order.MarketOrderID)
	}
	return nil
}

// PropagateShipments copies supplier-side tracking info onto the
// marketplace for every confirmed-but-unshipped order.
func (r *Relay) PropagateShipments(ctx context.Context, account *models.SupplierAccount) error {
	var pending []models.Order
	if err := r.db.
		Where("account_id = ? AND order_key <> '' AND status IN ?",
			account.ID, []models.OrderStatus{models.OrderStatusConfirmed, models.OrderStatusProcessing}).
		Find(&pending).Error; err != nil {
		return err
	}
	if len(pending) == 0 {
		return nil
	}

	tok, err := r.tokens.GetValidToken(ctx, account.ID)
	if err != nil {
		return err
	}
	creds := market.Credentials{
		AccessKey: account.MarketAccessKey,
		SecretKey: account.MarketSecretKey,
		VendorID:  account.MarketVendorID,
	}

	for i := range pending {
		order := &pending[i]
		info, err := r.supplier.FetchOrder(ctx, tok.Value, order.OrderKey)
		if err != nil {
			log.Printf("⚠️  Failed to fetch supplier order %s: %v", order.OrderKey, err)
			continue
		}
		if info.TrackingNumber == "" {
			continue
		}

		if err := r.market.UpdateShipment(ctx, creds, order.MarketOrderID, info.TrackingNumber, info.ShippingCompany); err != nil {
			log.Printf("⚠️  Failed to report shipment for order %s: %v", order.MarketOrderID, err)
			continue
		}

		shippedAt := info.ShippedAt
		if shippedAt == nil {
			now := time.Now().UTC()
			shippedAt = &now
		}
		if err := r.db.Model(&models.Order{}).
			Where("id = ?", order.ID).
			Updates(map[string]interface{}{
				"status":           models.OrderStatusShipped,
				"tracking_number":  info.TrackingNumber,
				"shipping_company": info.ShippingCompany,
				"shipped_at":       shippedAt,
			}).Error; err != nil {
			log.Printf("Failed to store shipment for order %d: %v", order.ID, err)
			continue
		}

		order.Status = models.OrderStatusShipped
		order.TrackingNumber = info.TrackingNumber
		r.notify(order)
		log.Printf("🚚 Order %s shipped (%s %s)", order.MarketOrderID, info.ShippingCompany, info.TrackingNumber)
	}
	return nil
}

// CancelOrder relays a cancellation to the supplier and the marketplace.
// Orders already shipped or delivered are never auto-resolved.
func (r *Relay) CancelOrder(ctx context.Context, orderID uint) error {
	var order models.Order
	if err := r.db.Preload("Account").First(&order, orderID).Error; err != nil {
		return err
	}

	switch order.Status {
	case models.OrderStatusShipped, models.OrderStatusDelivered:
		return &apperrors.ConflictingState{
			OrderKey: order.MarketOrderID,
			Detail:   fmt.Sprintf("order already %s; manual resolution required", order.Status),
		}
	case models.OrderStatusCancelled:
		return nil
	}

	account := order.Account
	if account == nil {
		return fmt.Errorf("order %d has no account", orderID)
	}

	if order.OrderKey != "" {
		tok, err := r.tokens.GetValidToken(ctx, account.ID)
		if err != nil {
			return err
		}
		if err := r.supplier.CancelOrder(ctx, tok.Value, order.OrderKey); err != nil {
			return err
		}
	}

	creds := market.Credentials{
		AccessKey: account.MarketAccessKey,
		SecretKey: account.MarketSecretKey,
		VendorID:  account.MarketVendorID,
	}
	if err := r.market.CancelOrder(ctx, creds, order.MarketOrderID); err != nil {
		return err
	}

	if err := r.db.Model(&models.Order{}).
		Where("id = ?", order.ID).
		Update("status", models.OrderStatusCancelled).Error; err != nil {
		return err
	}

	order.Status = models.OrderStatusCancelled
	r.notify(&order)
	log.Printf("🚫 Order %s cancelled", order.MarketOrderID)
	return nil
}

func (r *Relay) notify(order *models.Order) {
	if r.hub != nil {
		r.hub.Broadcast(websocket.EventOrderUpdate, order)
	}
}
