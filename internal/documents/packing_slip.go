package documents

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/sellerbridge/sellerbridge/internal/models"
	"github.com/skip2/go-qrcode"
)

// GeneratePackingSlip renders one A4 packing slip PDF for an order. When
// the order carries a tracking number it is embedded as a QR code so the
// warehouse scanner can pull up the shipment directly.
func GeneratePackingSlip(order *models.Order) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(15, 15, 15)
	pdf.SetAutoPageBreak(true, 20)
	pdf.AddPage()

	// Header
	pdf.SetFont("Arial", "B", 18)
	pdf.CellFormat(0, 10, "PACKING SLIP", "", 1, "L", false, 0, "")

	pdf.SetFont("Arial", "", 10)
	pdf.CellFormat(0, 6, fmt.Sprintf("Order: %s", order.MarketOrderID), "", 1, "L", false, 0, "")
	if order.OrderKey != "" {
		pdf.CellFormat(0, 6, fmt.Sprintf("Supplier ref: %s", order.OrderKey), "", 1, "L", false, 0, "")
	}
	pdf.CellFormat(0, 6, fmt.Sprintf("Status: %s", order.Status), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 6, fmt.Sprintf("Printed: %s", time.Now().UTC().Format("2006-01-02 15:04")), "", 1, "L", false, 0, "")

	// Tracking QR, top right
	if order.TrackingNumber != "" {
		qrPng, err := qrcode.Encode(order.TrackingNumber, qrcode.Medium, 256)
		if err != nil {
			return nil, err
		}
		opts := gofpdf.ImageOptions{ImageType: "PNG", ReadDpi: true}
		pdf.RegisterImageOptionsReader("tracking_qr", opts, bytes.NewReader(qrPng))
		pdf.ImageOptions("tracking_qr", 160, 15, 35, 35, false, opts, 0, "")

		pdf.SetXY(160, 50)
		pdf.SetFontSize(8)
		pdf.CellFormat(35, 4, order.TrackingNumber, "", 1, "C", false, 0, "")
		if order.ShippingCompany != "" {
			pdf.SetX(160)
			pdf.CellFormat(35, 4, order.ShippingCompany, "", 1, "C", false, 0, "")
		}
	}

	// Recipient block
	pdf.SetXY(15, 62)
	pdf.SetFont("Arial", "B", 11)
	pdf.CellFormat(0, 7, "Ship to", "", 1, "L", false, 0, "")
	pdf.SetFont("Arial", "", 10)
	for _, line := range recipientLines([]byte(order.RecipientInfo)) {
		pdf.CellFormat(0, 5, line, "", 1, "L", false, 0, "")
	}

	// Items table
	pdf.Ln(6)
	pdf.SetFont("Arial", "B", 10)
	pdf.SetFillColor(240, 240, 240)
	pdf.CellFormat(80, 7, "Item", "1", 0, "L", true, 0, "")
	pdf.CellFormat(45, 7, "SKU", "1", 0, "L", true, 0, "")
	pdf.CellFormat(20, 7, "Qty", "1", 0, "R", true, 0, "")
	pdf.CellFormat(35, 7, "Unit price", "1", 1, "R", true, 0, "")

	pdf.SetFont("Arial", "", 10)
	for _, it := range order.Items {
		pdf.CellFormat(80, 7, truncate(it.ProductName, 45), "1", 0, "L", false, 0, "")
		pdf.CellFormat(45, 7, it.ItemKey, "1", 0, "L", false, 0, "")
		pdf.CellFormat(20, 7, fmt.Sprintf("%d", it.Quantity), "1", 0, "R", false, 0, "")
		pdf.CellFormat(35, 7, formatWon(it.UnitPrice), "1", 1, "R", false, 0, "")
	}

	// Totals
	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(145, 7, "Shipping", "1", 0, "R", false, 0, "")
	pdf.CellFormat(35, 7, formatWon(order.ShippingFee), "1", 1, "R", false, 0, "")
	pdf.CellFormat(145, 7, "Total", "1", 0, "R", false, 0, "")
	pdf.CellFormat(35, 7, formatWon(order.TotalPrice), "1", 1, "R", false, 0, "")

	if order.Note != "" {
		pdf.Ln(4)
		pdf.SetFont("Arial", "I", 9)
		pdf.MultiCell(0, 5, "Note: "+order.Note, "", "L", false)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// recipientLines flattens the stored recipient JSON into printable lines.
// Well-known keys first, anything else appended after.
func recipientLines(raw []byte) []string {
	if len(raw) == 0 {
		return []string{"(no recipient info)"}
	}
	var info map[string]interface{}
	if err := json.Unmarshal(raw, &info); err != nil {
		return []string{"(unreadable recipient info)"}
	}

	known := []string{"name", "phone", "address", "addressDetail", "postalCode"}
	var lines []string
	seen := make(map[string]bool)
	for _, key := range known {
		if v, ok := info[key]; ok {
			lines = append(lines, fmt.Sprintf("%v", v))
			seen[key] = true
		}
	}
	for key, v := range info {
		if !seen[key] {
			lines = append(lines, fmt.Sprintf("%s: %v", key, v))
		}
	}
	if len(lines) == 0 {
		return []string{"(no recipient info)"}
	}
	return lines
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}

func formatWon(v int64) string {
	return fmt.Sprintf("%d KRW", v)
}
