package ownerclan

// GraphQL documents for the OwnerClan seller API

const queryItem = `
query ($key: ID!) {
    item(key: $key) {
        key
        name
        model
        category { name }
        price
        options {
            price
            quantity
            optionAttributes { name value }
        }
    }
}`

const queryItemPage = `
query ($first: Int!, $after: String) {
    allItems(first: $first, after: $after) {
        edges {
            node {
                key
                name
                model
                category { name }
                price
                options {
                    price
                    quantity
                    optionAttributes { name value }
                }
            }
            cursor
        }
        pageInfo {
            hasNextPage
            endCursor
        }
    }
}`

const queryCategories = `
query {
    categories {
        key
        name
        children {
            key
            name
            children { key name }
        }
    }
}`

const queryOrder = `
query ($key: ID!) {
    order(key: $key) {
        key
        status
        trackingNumber
        shippingCompany
        shippedDate
    }
}`

const mutationCreateOrder = `
mutation ($input: OrderInput!) {
    createOrder(input: $input) {
        key
    }
}`

const mutationCancelOrder = `
mutation ($key: ID!) {
    cancelOrder(key: $key) {
        key
    }
}`
