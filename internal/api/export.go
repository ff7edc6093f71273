package api

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"tidybeast/internal/models"

	"github.com/xuri/excelize/v2"
)

var exportHeader = []string{
	"Booking ID", "Service", "Home Size", "Unit", "Quantity", "Area (sq.ft)",
	"Customer", "Email", "Phone", "Address", "Date", "Time Slot",
	"Special Requirements", "Price (INR)", "Payment Status", "Booking Status",
	"Transaction ID", "Confirmed At",
}

// Exporter renders booking collections for admin download.
type Exporter struct{}

func NewExporter() *Exporter { return &Exporter{} }

func (e *Exporter) WriteCSV(w io.Writer, bookings []*models.ConfirmedBooking) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(exportHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, b := range bookings {
		if err := cw.Write(exportRow(b)); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func (e *Exporter) WriteXLSX(w io.Writer, bookings []*models.ConfirmedBooking) error {
	f := excelize.NewFile()
	defer f.Close()

	const sheetName = "Bookings"
	index, err := f.NewSheet(sheetName)
	if err != nil {
		return fmt.Errorf("create sheet: %w", err)
	}
	f.SetActiveSheet(index)

	for col, title := range exportHeader {
		cell, _ := excelize.CoordinatesToCellName(col+1, 1)
		_ = f.SetCellValue(sheetName, cell, title)
	}
	headerStyle, _ := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
		Font: &excelize.Font{Bold: true},
	})
	lastHeaderCell, _ := excelize.CoordinatesToCellName(len(exportHeader), 1)
	_ = f.SetCellStyle(sheetName, "A1", lastHeaderCell, headerStyle)

	for i, b := range bookings {
		row := exportRow(b)
		for col, value := range row {
			cell, _ := excelize.CoordinatesToCellName(col+1, i+2)
			_ = f.SetCellValue(sheetName, cell, value)
		}
	}

	_ = f.SetColWidth(sheetName, "A", "A", 18)
	_ = f.SetColWidth(sheetName, "B", "R", 16)
	_ = f.DeleteSheet("Sheet1")

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func exportRow(b *models.ConfirmedBooking) []string {
	quantity := ""
	if b.Selector.Quantity > 0 {
		quantity = strconv.Itoa(b.Selector.Quantity)
	}
	area := ""
	if b.Selector.Area > 0 {
		area = strconv.FormatFloat(b.Selector.Area, 'f', -1, 64)
	}
	return []string{
		b.ID,
		b.ServiceName,
		b.Selector.HomeSize,
		b.Selector.Unit,
		quantity,
		area,
		b.CustomerName,
		b.CustomerEmail,
		b.CustomerPhone,
		b.Address,
		b.Date.Format("2006-01-02"),
		b.TimeSlot,
		b.SpecialRequirements,
		strconv.FormatInt(b.Price, 10),
		b.PaymentStatus,
		b.BookingStatus,
		b.TransactionID,
		b.ConfirmedAt.Format("2006-01-02 15:04:05"),
	}
}
