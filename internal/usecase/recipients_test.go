package usecase

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entretech/zapnotify/internal/entity"
	"github.com/entretech/zapnotify/internal/phone"
)

func testResolver(transport *fakeTransport) *RecipientResolver {
	normalizer := phone.NewNormalizer("258", 9, []string{"82", "83", "84", "85", "86", "87"})
	return NewRecipientResolver(normalizer, transport)
}

func soDoc(attrs map[string]interface{}) entity.Document {
	return entity.Document{Doctype: "Sales Order", Name: "SO-0001", Attributes: attrs}
}

func TestResolveRecipients(t *testing.T) {
	ctx := context.Background()

	t.Run("Field Value lê o campo e normaliza", func(t *testing.T) {
		rule := entity.NotificationRule{RecipientType: entity.RecipientFieldValue, PhoneField: "customer.mobile_no"}
		doc := soDoc(map[string]interface{}{
			"customer": map[string]interface{}{"mobile_no": "84 123 4567"},
		})

		resolved, err := testResolver(&fakeTransport{}).Resolve(ctx, rule, doc)
		require.NoError(t, err)
		require.Len(t, resolved, 1)
		assert.Equal(t, "258841234567", resolved[0].Phone)
		assert.Equal(t, "84 123 4567", resolved[0].Raw)
	})

	t.Run("campo vazio resolve para zero destinatários", func(t *testing.T) {
		rule := entity.NotificationRule{RecipientType: entity.RecipientFieldValue, PhoneField: "mobile"}
		doc := soDoc(map[string]interface{}{"mobile": ""})

		resolved, err := testResolver(&fakeTransport{}).Resolve(ctx, rule, doc)
		require.NoError(t, err)
		assert.Empty(t, resolved)
	})

	t.Run("Fixed Number divide por vírgula e descarta inválidos", func(t *testing.T) {
		rule := entity.NotificationRule{
			RecipientType:   entity.RecipientFixedNumber,
			FixedRecipients: "841111111, abc, 258842222222",
		}

		resolved, err := testResolver(&fakeTransport{}).Resolve(ctx, rule, soDoc(nil))
		require.NoError(t, err)
		require.Len(t, resolved, 2)
		assert.Equal(t, "258841111111", resolved[0].Phone)
		assert.Equal(t, "258842222222", resolved[1].Phone)
	})

	t.Run("Both junta campo e fixos com dedupe", func(t *testing.T) {
		rule := entity.NotificationRule{
			RecipientType:   entity.RecipientBoth,
			PhoneField:      "mobile",
			FixedRecipients: "841234567,843333333",
		}
		doc := soDoc(map[string]interface{}{"mobile": "84 123 4567"})

		resolved, err := testResolver(&fakeTransport{}).Resolve(ctx, rule, doc)
		require.NoError(t, err)
		require.Len(t, resolved, 2) // o duplicado colapsou
		assert.Equal(t, "258841234567", resolved[0].Phone)
		assert.Equal(t, "258843333333", resolved[1].Phone)
	})

	t.Run("Group resolve membros na hora", func(t *testing.T) {
		rule := entity.NotificationRule{RecipientType: entity.RecipientGroup, GroupID: "12036@g.us"}
		transport := &fakeTransport{participants: []string{"258841111111", "842222222"}}

		resolved, err := testResolver(transport).Resolve(ctx, rule, soDoc(nil))
		require.NoError(t, err)
		require.Len(t, resolved, 2)
		assert.Equal(t, "258842222222", resolved[1].Phone)
	})

	t.Run("Phone and Group: grupo fora não derruba o campo", func(t *testing.T) {
		rule := entity.NotificationRule{
			RecipientType: entity.RecipientPhoneAndGroup,
			PhoneField:    "mobile",
			GroupID:       "12036@g.us",
		}
		doc := soDoc(map[string]interface{}{"mobile": "841234567"})
		transport := &fakeTransport{groupErr: fmt.Errorf("grupo indisponível")}

		resolved, err := testResolver(transport).Resolve(ctx, rule, doc)
		require.NoError(t, err)
		require.Len(t, resolved, 1)
		assert.Equal(t, "258841234567", resolved[0].Phone)
	})

	t.Run("Group com transporte fora propaga o erro", func(t *testing.T) {
		rule := entity.NotificationRule{RecipientType: entity.RecipientGroup, GroupID: "12036@g.us"}
		transport := &fakeTransport{groupErr: fmt.Errorf("grupo indisponível")}

		_, err := testResolver(transport).Resolve(ctx, rule, soDoc(nil))
		assert.Error(t, err)
	})
}
