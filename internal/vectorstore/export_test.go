package vectorstore

var FilterBy = filterBy
