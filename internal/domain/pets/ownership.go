package pets

import "context"

// OwnerOf expone el ownerUserID de una mascota.
// Lo usan events y placement a través de interfaces chicas, sin importar este paquete entero.
func (s *Service) OwnerOf(ctx context.Context, petID string) (string, error) {
	p, err := s.GetByID(ctx, petID)
	if err != nil {
		return "", err
	}
	return p.OwnerUserID, nil
}

// SpeciesOf devuelve el slug del tipo de mascota (para el checker de capabilities).
func (s *Service) SpeciesOf(ctx context.Context, petID string) (string, error) {
	p, err := s.GetByID(ctx, petID)
	if err != nil {
		return "", err
	}
	return p.Species, nil
}
