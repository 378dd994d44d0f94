package cart

import (
	"strconv"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
)

// DecodeRawItems decodes a JSON array of cart entries. Each element is
// classified as server-shaped (object under "productId") or local-shaped.
func DecodeRawItems(data []byte) ([]RawItem, error) {
	items, err := decodeItems(jx.DecodeBytes(data))
	if err != nil {
		return nil, errors.Wrap(err, "decode cart items")
	}
	return items, nil
}

// DecodeCartEnvelope decodes a cart payload that is either a bare items
// array, {"items": [...]}, or {"cart": {"items": [...]}}.
func DecodeCartEnvelope(data []byte) ([]RawItem, error) {
	items, err := decodeEnvelope(jx.DecodeBytes(data))
	if err != nil {
		return nil, errors.Wrap(err, "decode cart")
	}
	return items, nil
}

// DecodeEnvelope is DecodeCartEnvelope over an existing decoder, for callers
// that embed a cart inside a larger document.
func DecodeEnvelope(d *jx.Decoder) ([]RawItem, error) {
	return decodeEnvelope(d)
}

func decodeEnvelope(d *jx.Decoder) ([]RawItem, error) {
	switch tt := d.Next(); tt {
	case jx.Array:
		return decodeItems(d)
	case jx.Null:
		return nil, d.Null()
	case jx.Object:
		var items []RawItem
		err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
			var err error
			switch string(key) {
			case "items":
				items, err = decodeItems(d)
			case "cart":
				items, err = decodeEnvelope(d)
			default:
				err = d.Skip()
			}
			return err
		})
		return items, err
	default:
		return nil, errors.Errorf("unexpected cart payload type %s", tt)
	}
}

func decodeItems(d *jx.Decoder) ([]RawItem, error) {
	if d.Next() == jx.Null {
		return nil, d.Null()
	}
	items := []RawItem{}
	err := d.Arr(func(d *jx.Decoder) error {
		it, err := decodeRawItem(d)
		if err != nil {
			return err
		}
		items = append(items, it)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return items, nil
}

func decodeRawItem(d *jx.Decoder) (RawItem, error) {
	if d.Next() != jx.Object {
		return RawItem{}, d.Skip()
	}

	var (
		local   LocalItem
		product *ProductRef
	)
	err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		var err error
		switch string(key) {
		case "productId", "product":
			if d.Next() == jx.Object {
				var p ProductRef
				p, err = decodeProductRef(d)
				product = &p
			} else {
				local.ProductID, err = decodeText(d)
			}
		case "id":
			local.ID, err = decodeText(d)
		case "_id":
			local.LegacyID, err = decodeText(d)
		case "name":
			local.Name, err = decodeText(d)
		case "title":
			local.Title, err = decodeText(d)
		case "productName":
			local.ProductName, err = decodeText(d)
		case "category":
			local.Category, err = decodeText(d)
		case "price":
			local.Price, err = decodeScalar(d)
		case "quantity", "qty":
			local.Quantity, err = decodeScalar(d)
		default:
			err = d.Skip()
		}
		return err
	})
	if err != nil {
		return RawItem{}, err
	}

	if product != nil {
		return RawItem{Server: &ServerItem{
			Product:  *product,
			Name:     firstNonEmpty(local.Name, local.Title),
			Price:    local.Price,
			Quantity: local.Quantity,
		}}, nil
	}
	return RawItem{Local: &local}, nil
}

func decodeProductRef(d *jx.Decoder) (ProductRef, error) {
	var (
		p        ProductRef
		fallback string
	)
	err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		var err error
		switch string(key) {
		case "_id":
			p.ID, err = decodeText(d)
		case "id":
			fallback, err = decodeText(d)
		case "title":
			p.Title, err = decodeText(d)
		case "name":
			p.Name, err = decodeText(d)
		case "category":
			p.Category, err = decodeText(d)
		case "price":
			p.Price, err = decodeScalar(d)
		default:
			err = d.Skip()
		}
		return err
	})
	if p.ID == "" {
		p.ID = fallback
	}
	return p, err
}

// decodeText reads a string or a number as text; other kinds are skipped and
// yield "".
func decodeText(d *jx.Decoder) (string, error) {
	switch d.Next() {
	case jx.String:
		return d.Str()
	case jx.Number:
		raw, err := d.Raw()
		return strings.TrimSpace(string(raw)), err
	default:
		return "", d.Skip()
	}
}

func decodeScalar(d *jx.Decoder) (Scalar, error) {
	switch d.Next() {
	case jx.Null:
		return Null(), d.Null()
	case jx.Number:
		raw, err := d.Raw()
		return Number(strings.TrimSpace(string(raw))), err
	case jx.String:
		s, err := d.Str()
		return String(s), err
	case jx.Bool:
		b, err := d.Bool()
		return Scalar{Kind: ScalarBool, Text: strconv.FormatBool(b)}, err
	default:
		return Scalar{Kind: ScalarOther}, d.Skip()
	}
}

// EncodeRawItems encodes raw items back to JSON, preserving each item's
// shape and the literal form of its scalars.
func EncodeRawItems(items []RawItem) []byte {
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)

	EncodeRawItemsTo(e, items)
	return append([]byte(nil), e.Bytes()...)
}

// EncodeRawItemsTo writes items as a JSON array to e.
func EncodeRawItemsTo(e *jx.Encoder, items []RawItem) {
	e.ArrStart()
	for _, it := range items {
		switch {
		case it.Server != nil:
			encodeServerItem(e, it.Server)
		case it.Local != nil:
			encodeLocalItem(e, it.Local)
		default:
			e.Null()
		}
	}
	e.ArrEnd()
}

func encodeServerItem(e *jx.Encoder, s *ServerItem) {
	e.ObjStart()
	e.FieldStart("productId")
	e.ObjStart()
	textField(e, "_id", s.Product.ID)
	textField(e, "title", s.Product.Title)
	textField(e, "name", s.Product.Name)
	textField(e, "category", s.Product.Category)
	scalarField(e, "price", s.Product.Price)
	e.ObjEnd()
	textField(e, "name", s.Name)
	scalarField(e, "price", s.Price)
	scalarField(e, "quantity", s.Quantity)
	e.ObjEnd()
}

func encodeLocalItem(e *jx.Encoder, l *LocalItem) {
	e.ObjStart()
	textField(e, "id", l.ID)
	textField(e, "productId", l.ProductID)
	textField(e, "_id", l.LegacyID)
	textField(e, "name", l.Name)
	textField(e, "title", l.Title)
	textField(e, "productName", l.ProductName)
	textField(e, "category", l.Category)
	scalarField(e, "price", l.Price)
	scalarField(e, "quantity", l.Quantity)
	e.ObjEnd()
}

func textField(e *jx.Encoder, name, v string) {
	if v == "" {
		return
	}
	e.FieldStart(name)
	e.Str(v)
}

func scalarField(e *jx.Encoder, name string, s Scalar) {
	switch s.Kind {
	case ScalarMissing, ScalarOther:
		return
	case ScalarNull:
		e.FieldStart(name)
		e.Null()
	case ScalarNumber:
		e.FieldStart(name)
		e.RawStr(s.Text)
	case ScalarString:
		e.FieldStart(name)
		e.Str(s.Text)
	case ScalarBool:
		e.FieldStart(name)
		e.Bool(s.Text == "true")
	}
}
