package tests

func (s *IntegrationTestSuite) TestProductList_Success() {
	dataset := []struct {
		id, title, price string
	}{
		{"vinyl-1", "A Great Chaos Vinyl", "99.99"},
		{"kuronami", "黒波・混沌 Edition", "150"},
		{"tape-1", "Chaos Tape", "12.5"},
	}

	for _, p := range dataset {
		s.Require().NoError(s.CachedProductService.Create(s.Ctx, newProduct(p.id, p.title, p.price, 1)))
	}

	list, total, err := s.CachedProductService.List(s.Ctx, 10, 0, "")
	s.Require().NoError(err)
	s.Require().EqualValues(len(dataset), total)
	s.Require().Len(list, len(dataset))

	byID := make(map[string]string, len(list))
	for _, p := range list {
		byID[p.ID] = p.Title
	}
	for _, expected := range dataset {
		s.Require().Equal(expected.title, byID[expected.id])
	}
}

func (s *IntegrationTestSuite) TestProductList_SearchAndPaging() {
	s.Require().NoError(s.ProductService.Create(s.Ctx, newProduct("vinyl-1", "A Great Chaos Vinyl", "99.99", 1)))
	s.Require().NoError(s.ProductService.Create(s.Ctx, newProduct("tape-1", "Chaos Tape", "12.5", 1)))
	s.Require().NoError(s.ProductService.Create(s.Ctx, newProduct("poster", "Tour Poster", "5", 1)))

	list, total, err := s.ProductService.List(s.Ctx, 10, 0, "chaos")
	s.Require().NoError(err)
	s.Require().EqualValues(2, total)
	s.Require().Len(list, 2)

	page, total, err := s.ProductService.List(s.Ctx, 1, 1, "")
	s.Require().NoError(err)
	s.Require().EqualValues(3, total)
	s.Require().Len(page, 1)
}

func (s *IntegrationTestSuite) TestProductList_Empty() {
	list, total, err := s.ProductService.List(s.Ctx, 0, -5, "")
	s.Require().NoError(err)
	s.Require().Zero(total)
	s.Require().Empty(list)
}
