package mapper

import (
	"time"

	"github.com/vibast-solutions/ms-go-pix/app/entity"
	"github.com/vibast-solutions/ms-go-pix/app/types"
)

func PaymentToCreateResponse(item *entity.Payment) *types.CreatePixResponse {
	if item == nil {
		return nil
	}

	return &types.CreatePixResponse{
		PaymentID:   item.PaymentID,
		QRCodeImage: item.Pix.QRCodeImage,
		PixCode:     item.Pix.PixCode,
		ExpiresAt:   formatTime(item.Pix.ExpiresAt),
	}
}

func PaymentToResponse(item *entity.Payment) *types.PaymentResponse {
	if item == nil {
		return nil
	}

	items := make([]types.ItemResponse, 0, len(item.Items))
	for _, line := range item.Items {
		items = append(items, types.ItemResponse{
			Title:          line.Title,
			Quantity:       line.Quantity,
			UnitPriceCents: line.UnitPriceCents,
			Tangible:       line.Tangible,
		})
	}

	return &types.PaymentResponse{
		PaymentID:   item.PaymentID,
		Status:      item.Status,
		TotalCents:  item.TotalCents,
		QRCodeImage: item.Pix.QRCodeImage,
		PixCode:     item.Pix.PixCode,
		ExpiresAt:   formatTime(item.Pix.ExpiresAt),
		Customer: types.CustomerResponse{
			Name:     item.Customer.Name,
			Email:    item.Customer.Email,
			Phone:    item.Customer.Phone,
			Document: item.Customer.Document,
		},
		Items:     items,
		UTM:       item.UTM,
		CreatedAt: formatTime(item.CreatedAt),
		UpdatedAt: formatTime(item.UpdatedAt),
	}
}

func formatTime(ts time.Time) string {
	if ts.IsZero() {
		return ""
	}
	return ts.UTC().Format(time.RFC3339)
}
